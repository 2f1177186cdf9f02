package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Masterminds/squirrel"
	"github.com/mvelloso/studydeck/internal/logger"
	"github.com/mvelloso/studydeck/internal/models"
	"github.com/mvelloso/studydeck/internal/repository"
)

var sqlBuilder = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question)

const deckColumns = `id, owner_id, name, description, new_cards_per_day, max_reviews_per_day, is_public,
       total_cards, new_cards, learning_cards, review_cards, mastered_cards, subscriber_count,
       revision, created_at, updated_at`

type deckRepository struct {
	db *sql.DB
}

// NewDeckRepository creates a new DeckRepository implementation
func NewDeckRepository(db *sql.DB) repository.DeckRepository {
	return &deckRepository{db: db}
}

func (r *deckRepository) Insert(ctx context.Context, d models.Deck) error {
	log := logger.FromContext(ctx).WithPrefix("deck_repo")
	log.Debug("inserting deck: id=%s, owner=%s, cards=%d", d.ID, d.OwnerID, len(d.Cards))

	if d.Revision == 0 {
		d.Revision = 1
	}

	return tx(ctx, r.db, func(t *sql.Tx) error {
		_, err := t.ExecContext(ctx, `
INSERT INTO decks (id, owner_id, name, description, new_cards_per_day, max_reviews_per_day, is_public,
                   total_cards, new_cards, learning_cards, review_cards, mastered_cards, subscriber_count,
                   revision, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, d.ID, d.OwnerID, d.Name, d.Description, d.NewCardsPerDay, d.MaxReviewsPerDay, d.IsPublic,
			d.TotalCards, d.NewCards, d.LearningCards, d.ReviewCards, d.MasteredCards, d.SubscriberCount,
			d.Revision, d.CreatedAt, d.UpdatedAt)
		if err != nil {
			log.Error("failed to insert deck: %v", err)
			return err
		}
		if err := insertCards(ctx, t, d.ID, d.Cards); err != nil {
			log.Error("failed to insert cards: %v", err)
			return err
		}
		if err := insertSubscribers(ctx, t, d.ID, d.Subscribers); err != nil {
			log.Error("failed to insert subscribers: %v", err)
			return err
		}
		return nil
	})
}

func (r *deckRepository) Get(ctx context.Context, id string) (*models.Deck, error) {
	log := logger.FromContext(ctx).WithPrefix("deck_repo")
	log.Debug("getting deck: id=%s", id)

	var d models.Deck
	err := r.db.QueryRowContext(ctx, `
SELECT `+deckColumns+`
FROM decks
WHERE id = ?
`, id).Scan(&d.ID, &d.OwnerID, &d.Name, &d.Description, &d.NewCardsPerDay, &d.MaxReviewsPerDay, &d.IsPublic,
		&d.TotalCards, &d.NewCards, &d.LearningCards, &d.ReviewCards, &d.MasteredCards, &d.SubscriberCount,
		&d.Revision, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		log.Debug("deck not found: id=%s", id)
		return nil, nil
	}
	if err != nil {
		log.Error("failed to get deck: %v", err)
		return nil, err
	}

	cards, err := r.cardsForDeck(ctx, id)
	if err != nil {
		log.Error("failed to load cards: %v", err)
		return nil, err
	}
	d.Cards = cards

	subs, err := r.subscribersForDeck(ctx, id)
	if err != nil {
		log.Error("failed to load subscribers: %v", err)
		return nil, err
	}
	d.Subscribers = subs

	log.Debug("deck found: name=%s, cards=%d, revision=%d", d.Name, len(d.Cards), d.Revision)
	return &d, nil
}

func (r *deckRepository) List(ctx context.Context, filter models.DeckFilter) ([]models.Deck, error) {
	log := logger.FromContext(ctx).WithPrefix("deck_repo")
	log.Debug("listing decks: requester=%s, owner=%s, public_only=%v, name=%s",
		filter.RequesterID, filter.OwnerID, filter.PublicOnly, filter.Name)

	query := sqlBuilder.Select(
		"id", "owner_id", "name", "description", "new_cards_per_day", "max_reviews_per_day", "is_public",
		"total_cards", "new_cards", "learning_cards", "review_cards", "mastered_cards", "subscriber_count",
		"revision", "created_at", "updated_at",
	).From("decks")

	// Visibility: decks owned by the requester plus public decks.
	query = query.Where(squirrel.Or{
		squirrel.Eq{"owner_id": filter.RequesterID},
		squirrel.Eq{"is_public": true},
	})

	// Dynamic WHERE clauses
	if filter.OwnerID != "" {
		query = query.Where(squirrel.Eq{"owner_id": filter.OwnerID})
	}
	if filter.PublicOnly {
		query = query.Where(squirrel.Eq{"is_public": true})
	}
	if filter.Name != "" {
		query = query.Where(squirrel.Like{"name": "%" + filter.Name + "%"})
	}

	query = query.OrderBy("created_at DESC")

	// Pagination
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query = query.Limit(uint64(limit)).Offset(uint64(offset))

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Error("failed to build query: %v", err)
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		log.Error("failed to list decks: %v", err)
		return nil, err
	}
	defer rows.Close()

	var decks []models.Deck
	for rows.Next() {
		var d models.Deck
		if err := rows.Scan(&d.ID, &d.OwnerID, &d.Name, &d.Description, &d.NewCardsPerDay, &d.MaxReviewsPerDay, &d.IsPublic,
			&d.TotalCards, &d.NewCards, &d.LearningCards, &d.ReviewCards, &d.MasteredCards, &d.SubscriberCount,
			&d.Revision, &d.CreatedAt, &d.UpdatedAt); err != nil {
			log.Error("failed to scan deck row: %v", err)
			return nil, err
		}
		decks = append(decks, d)
	}
	log.Debug("found %d decks", len(decks))
	return decks, rows.Err()
}

func (r *deckRepository) Update(ctx context.Context, d models.Deck) error {
	log := logger.FromContext(ctx).WithPrefix("deck_repo")
	log.Debug("updating deck: id=%s, revision=%d", d.ID, d.Revision)

	return tx(ctx, r.db, func(t *sql.Tx) error {
		res, err := t.ExecContext(ctx, `
UPDATE decks
SET owner_id = ?, name = ?, description = ?, new_cards_per_day = ?, max_reviews_per_day = ?, is_public = ?,
    total_cards = ?, new_cards = ?, learning_cards = ?, review_cards = ?, mastered_cards = ?, subscriber_count = ?,
    revision = revision + 1, updated_at = ?
WHERE id = ? AND revision = ?
`, d.OwnerID, d.Name, d.Description, d.NewCardsPerDay, d.MaxReviewsPerDay, d.IsPublic,
			d.TotalCards, d.NewCards, d.LearningCards, d.ReviewCards, d.MasteredCards, d.SubscriberCount,
			d.UpdatedAt, d.ID, d.Revision)
		if err != nil {
			log.Error("failed to update deck: %v", err)
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			var one int
			err := t.QueryRowContext(ctx, `SELECT 1 FROM decks WHERE id = ?`, d.ID).Scan(&one)
			if errors.Is(err, sql.ErrNoRows) {
				return sql.ErrNoRows
			}
			if err != nil {
				return err
			}
			log.Debug("revision mismatch on deck %s (had %d)", d.ID, d.Revision)
			return repository.ErrRevisionMismatch
		}

		// Replace the embedded collections wholesale. The deck is one
		// document; partial card diffs are not worth the bookkeeping.
		if _, err := t.ExecContext(ctx, `DELETE FROM cards WHERE deck_id = ?`, d.ID); err != nil {
			log.Error("failed to clear cards: %v", err)
			return err
		}
		if err := insertCards(ctx, t, d.ID, d.Cards); err != nil {
			log.Error("failed to insert cards: %v", err)
			return err
		}
		if _, err := t.ExecContext(ctx, `DELETE FROM deck_subscribers WHERE deck_id = ?`, d.ID); err != nil {
			log.Error("failed to clear subscribers: %v", err)
			return err
		}
		if err := insertSubscribers(ctx, t, d.ID, d.Subscribers); err != nil {
			log.Error("failed to insert subscribers: %v", err)
			return err
		}
		return nil
	})
}

func (r *deckRepository) Delete(ctx context.Context, id string) error {
	log := logger.FromContext(ctx).WithPrefix("deck_repo")
	log.Debug("deleting deck: id=%s", id)

	res, err := r.db.ExecContext(ctx, `DELETE FROM decks WHERE id = ?`, id)
	if err != nil {
		log.Error("failed to delete deck: %v", err)
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	log.Debug("deck deleted: id=%s", id)
	return nil
}

func (r *deckRepository) cardsForDeck(ctx context.Context, deckID string) ([]models.Card, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, front, back, image_url, tags, ease_factor, interval_days, repetitions,
       next_review_at, last_review_at, total_reviews, correct_reviews, incorrect_reviews,
       average_quality, status, created_at
FROM cards
WHERE deck_id = ?
ORDER BY position
`, deckID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cards []models.Card
	for rows.Next() {
		var c models.Card
		var rawTags string
		var lastReview sql.NullTime
		if err := rows.Scan(&c.ID, &c.Front, &c.Back, &c.ImageURL, &rawTags, &c.EaseFactor, &c.Interval, &c.Repetitions,
			&c.NextReviewDate, &lastReview, &c.TotalReviews, &c.CorrectReviews, &c.IncorrectReviews,
			&c.AverageQuality, &c.Status, &c.CreatedAt); err != nil {
			return nil, err
		}
		if lastReview.Valid {
			t := lastReview.Time
			c.LastReviewDate = &t
		}
		tags, err := decodeTags(rawTags)
		if err != nil {
			return nil, err
		}
		c.Tags = tags
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

func (r *deckRepository) subscribersForDeck(ctx context.Context, deckID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT user_id FROM deck_subscribers WHERE deck_id = ? ORDER BY subscribed_at, user_id
`, deckID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

func insertCards(ctx context.Context, t *sql.Tx, deckID string, cards []models.Card) error {
	for i, c := range cards {
		rawTags, err := encodeTags(c.Tags)
		if err != nil {
			return err
		}
		var lastReview sql.NullTime
		if c.LastReviewDate != nil {
			lastReview = sql.NullTime{Time: *c.LastReviewDate, Valid: true}
		}
		if _, err := t.ExecContext(ctx, `
INSERT INTO cards (id, deck_id, position, front, back, image_url, tags, ease_factor, interval_days, repetitions,
                   next_review_at, last_review_at, total_reviews, correct_reviews, incorrect_reviews,
                   average_quality, status, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, c.ID, deckID, i, c.Front, c.Back, c.ImageURL, rawTags, c.EaseFactor, c.Interval, c.Repetitions,
			c.NextReviewDate, lastReview, c.TotalReviews, c.CorrectReviews, c.IncorrectReviews,
			c.AverageQuality, c.Status, c.CreatedAt); err != nil {
			return err
		}
	}
	return nil
}

func insertSubscribers(ctx context.Context, t *sql.Tx, deckID string, subscribers []string) error {
	for _, userID := range subscribers {
		if _, err := t.ExecContext(ctx, `
INSERT INTO deck_subscribers (deck_id, user_id) VALUES (?, ?)
`, deckID, userID); err != nil {
			return err
		}
	}
	return nil
}
