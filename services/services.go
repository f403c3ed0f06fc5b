// Package services holds the account, profile, graph and engagement logic.
// Every operation validates its input before touching a store and reports
// failures as *apperr.Error values.
package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"kinship/apperr"
)

func now() time.Time {
	return time.Now().UTC()
}

// parseID turns a client supplied hex id into an ObjectID, reporting a field
// error when it is malformed.
func parseID(field, s string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(s))
	if err != nil {
		return primitive.NilObjectID, apperr.Field(field, "Invalid "+field)
	}
	return id, nil
}

// parseIDSet parses ids and drops duplicates, keeping first-seen order.
func parseIDSet(field string, raw []string) ([]primitive.ObjectID, error) {
	out := make([]primitive.ObjectID, 0, len(raw))
	seen := make(map[primitive.ObjectID]bool, len(raw))
	for _, s := range raw {
		id, err := parseID(field, s)
		if err != nil {
			return nil, err
		}
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out, nil
}

// stringSet trims entries and drops empties and duplicates.
func stringSet(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// storeErr hides a store failure behind an opaque server error.
func storeErr(op string, err error) error {
	return apperr.Internal(fmt.Errorf("%s: %w", op, err))
}

// lookupErr maps ErrNotFound to a NotFound with msg and anything else to a
// server error.
func lookupErr(op, msg string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return apperr.NotFound(msg)
	}
	return storeErr(op, err)
}

func ensureLogger(log *zap.Logger) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log
}

func hexIDs(ids []primitive.ObjectID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.Hex()
	}
	return out
}
