package model

import (
	"strings"

	"github.com/google/uuid"
)

// idNamespace scopes the name-based UUIDs minted by the engines so repeated
// runs over the same inputs produce the same identifiers.
var idNamespace = uuid.MustParse("6f1c3a52-8d3e-4b7a-9c15-2f4e8a6b0d91")

// PayeeID returns the identifier for a payee minted from name. Names that
// differ only in case or surrounding space share an id.
func PayeeID(name string) string {
	key := "payee:" + strings.ToLower(strings.TrimSpace(name))
	return uuid.NewSHA1(idNamespace, []byte(key)).String()
}

// AllocationID returns the identifier of the record a rule's purpose
// produces for a transaction.
func AllocationID(transactionID, ruleID, purposeID string) string {
	key := "allocation:" + transactionID + "\x00" + ruleID + "\x00" + purposeID
	return uuid.NewSHA1(idNamespace, []byte(key)).String()
}
