package store

import (
	"database/sql"
	"fmt"

	"github.com/huntworks/huntrelay/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// scanner abstracts *sql.Row and *sql.Rows for shared scan helpers.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanUser scans a users row.
func scanUser(row scanner) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.HuntID, &u.ClueID, &u.FirstName, &u.LastName, &u.PaymentStatus, &u.PhoneNumber)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// scanClue scans a clues row, mapping the nullable text_message column.
func scanClue(row scanner) (*models.Clue, error) {
	var c models.Clue
	var textMessage sql.NullString
	err := row.Scan(&c.ClueID, &c.HuntID, &c.ClueName, &c.ClueDescription, &c.ClueSolution, &c.ClueType, &textMessage)
	if err != nil {
		return nil, err
	}
	c.TextMessage = textMessage.String
	return &c, nil
}

// scanText scans a texts row, mapping nullable metadata columns.
func scanText(row scanner) (*models.TextMessage, error) {
	var t models.TextMessage
	var userID, responseTime sql.NullInt64
	var huntID, clueID sql.NullInt64
	var textbeltID, aiModel, errorMessage, threadID sql.NullString
	err := row.Scan(
		&t.ID, &t.Direction, &t.Message, &t.MessageType, &userID, &huntID, &clueID,
		&t.ConversationID, &textbeltID, &t.PhoneNumber, &aiModel, &responseTime,
		&t.Status, &errorMessage, &threadID, &t.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan text row failed: %w", err)
	}
	t.UserID = userID.Int64
	t.HuntID = int(huntID.Int64)
	t.ClueID = int(clueID.Int64)
	t.TextbeltID = textbeltID.String
	t.AIModel = aiModel.String
	t.ResponseTimeMs = responseTime.Int64
	t.ErrorMessage = errorMessage.String
	t.ThreadID = threadID.String
	return &t, nil
}

// textColumns is the select list matching scanText.
const textColumns = `id, direction, message, message_type, user_id, hunt_id, clue_id,
	conversation_id, textbelt_id, phone_number, ai_model_used, response_time_ms,
	status, error_message, openai_thread_id, created_at`
