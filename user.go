package statsig

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
)

// EnvironmentTier is the deployment tier a user is evaluated in.
type EnvironmentTier string

const (
	TierProduction  EnvironmentTier = "production"
	TierStaging     EnvironmentTier = "staging"
	TierDevelopment EnvironmentTier = "development"
)

// Environment is sent as statsigEnvironment with the user.
type Environment struct {
	Tier EnvironmentTier `json:"tier" validate:"oneof=production staging development"`
}

// User is the subject gates and configs are evaluated for.
//
// Only UserID, Email and CustomIDs take part in [User.Hash], so two users that
// differ only in Custom or PrivateAttributes share cache entries and batches.
type User struct {
	UserID             string            `json:"userID,omitempty" validate:"omitempty,max=100"`
	Email              string            `json:"email,omitempty" validate:"omitempty,email"`
	IP                 string            `json:"ip,omitempty" validate:"omitempty,min=7,max=45"`
	UserAgent          string            `json:"userAgent,omitempty"`
	Country            string            `json:"country,omitempty" validate:"omitempty,len=2"`
	Locale             string            `json:"locale,omitempty"`
	AppVersion         string            `json:"appVersion,omitempty"`
	Custom             map[string]any    `json:"custom,omitempty"`
	PrivateAttributes  map[string]any    `json:"privateAttributes,omitempty"`
	CustomIDs          map[string]string `json:"customIDs,omitempty"`
	StatsigEnvironment *Environment      `json:"statsigEnvironment,omitempty"`
}

var structValidator = validator.New()

// Validate checks the user's fields and returns a KindUserValidation error
// describing the first failing field.
func (u User) Validate() error {
	validateErr := structValidator.Struct(u)
	if validateErr == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(validateErr, &fieldErrs) && len(fieldErrs) > 0 {
		return newError(KindUserValidation, "%s", describeFieldError(fieldErrs[0]))
	}
	return wrapError(KindUserValidation, validateErr)
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.StructField() {
	case "UserID":
		return "userID must be between 1 and 100 characters"
	case "Email":
		return "Invalid email format"
	case "IP":
		return "Invalid IP address format"
	case "Country":
		return "Country must be a 2-letter ISO code"
	case "Tier":
		return "environment tier must be one of production, staging, development"
	}
	return fe.Error()
}

// PrimaryID returns the user ID, else the email, else the first custom ID by key order.
func (u User) PrimaryID() string {
	if u.UserID != "" {
		return u.UserID
	}
	if u.Email != "" {
		return u.Email
	}
	for _, key := range sortedKeys(u.CustomIDs) {
		return u.CustomIDs[key]
	}
	return ""
}

// Hash returns a hex SHA-256 digest of the user's stable identifiers:
// user ID, email and custom IDs in key order.
// It is the key used for cache partitioning and batch grouping.
func (u User) Hash() string {
	hasher := sha256.New()
	writeField := func(name, value string) {
		hasher.Write([]byte(name))
		hasher.Write([]byte{0})
		hasher.Write([]byte(value))
		hasher.Write([]byte{0})
	}
	if u.UserID != "" {
		writeField("userID", u.UserID)
	}
	if u.Email != "" {
		writeField("email", u.Email)
	}
	for _, key := range sortedKeys(u.CustomIDs) {
		writeField("customID:"+key, u.CustomIDs[key])
	}
	return hex.EncodeToString(hasher.Sum(nil))
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, strings.Compare)
	return keys
}
