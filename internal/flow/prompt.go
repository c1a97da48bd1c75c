package flow

import (
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"

	"github.com/huntworks/huntrelay/internal/models"
)

// ClueData is the serialized clue payload injected into the instruction
// template as {{clue_data}}. Fields mirror the clues table; TextMessage is
// present only when the clue row carries one.
type ClueData struct {
	ClueNumber      string `json:"clue_number"`
	HuntID          string `json:"hunt_id"`
	ClueName        string `json:"clue_name"`
	ClueDescription string `json:"clue_description"`
	ClueSolution    string `json:"clue_solution"`
	ClueType        string `json:"clue_type"`
	TextMessage     string `json:"text_message,omitempty"`
}

// BuildDynamicVariables assembles the template-variable mapping for one run
// from the user record, their current clue row (may be nil) and progress
// markers. A zero hunt id defaults to 1.
func BuildDynamicVariables(user *models.User, clue *models.Clue, huntID, clueNumber int) map[string]string {
	if huntID == 0 {
		huntID = 1
	}

	data := ClueData{
		ClueNumber: strconv.Itoa(clueNumber),
		HuntID:     strconv.Itoa(huntID),
	}
	if clue != nil {
		data.ClueName = clue.ClueName
		data.ClueDescription = clue.ClueDescription
		data.ClueSolution = clue.ClueSolution
		data.ClueType = clue.ClueType
		data.TextMessage = clue.TextMessage
	}

	clueJSON, err := json.Marshal(data)
	if err != nil {
		// ClueData contains only strings, so this cannot fail in practice.
		slog.Error("BuildDynamicVariables: clue data marshal failed", "error", err)
		clueJSON = []byte("{}")
	}

	vars := map[string]string{
		"first_name":     "",
		"last_name":      "",
		"payment_status": "false",
		"clue_data":      string(clueJSON),
	}
	if user != nil {
		vars["first_name"] = user.FirstName
		vars["last_name"] = user.LastName
		vars["payment_status"] = strconv.FormatBool(user.PaymentStatus)
	}
	return vars
}

// SubstituteVariables replaces every literal {{key}} occurrence in the
// template with the mapped value. Placeholder text is matched verbatim, so
// user-supplied values can never be interpreted as pattern syntax. Unmatched
// placeholders are left as-is.
func SubstituteVariables(template string, vars map[string]string) string {
	result := template
	for key, value := range vars {
		result = strings.ReplaceAll(result, "{{"+key+"}}", value)
	}
	return result
}
