package statsig

import of "github.com/open-feature/go-sdk/openfeature"

// Key is the type for the keys in the Statsig [User] type.
type Key string

const (
	// KeyUserID is the canonical key for the user ID in the Statsig User type.
	// Automatically mapped from the targeting key.
	KeyUserID Key = "userID"
	// KeyEmail is the canonical key for the email in the Statsig User type.
	KeyEmail Key = "email"
	// KeyIP is the canonical key for the IP address in the Statsig User type.
	KeyIP Key = "ip"
	// KeyUserAgent is the canonical key for the user agent in the Statsig User type.
	KeyUserAgent Key = "userAgent"
	// KeyCountry is the canonical key for the two-letter country code in the Statsig User type.
	KeyCountry Key = "country"
	// KeyLocale is the canonical key for the locale in the Statsig User type.
	KeyLocale Key = "locale"
	// KeyAppVersion is the canonical key for the app version in the Statsig User type.
	KeyAppVersion Key = "appVersion"
	// KeyCustom is the canonical key for custom attributes.
	// The corresponding value is a map[string]any.
	KeyCustom Key = "custom"
	// KeyPrivateAttributes is the canonical key for attributes used in evaluation
	// but not logged. The corresponding value is a map[string]any.
	KeyPrivateAttributes Key = "privateAttributes"
	// KeyCustomIDs is the canonical key for custom unit IDs.
	// The corresponding value is a map[string]string.
	KeyCustomIDs Key = "customIDs"
	// KeyStatsigEnvironment is the canonical key for the environment.
	// The corresponding value is a map with a "tier" key.
	KeyStatsigEnvironment Key = "statsigEnvironment"
)

// DefaultKeyMap is a map of string keys that might be in the evaluation context
// to the canonical key used by Statsig.
// You can add keys to this map to automatically map the keys in the evaluation context
// to the canonical keys used by Statsig.
// Any keys that are not mapped will be added to the [User.Custom] map.
// For more advanced normalization, use a hook to pre-process the evaluation context.
func DefaultKeyMap() map[string]Key {
	var keyMap = map[string]Key{}
	for k, values := range map[Key][]string{
		KeyUserID:             {string(KeyUserID), of.TargetingKey, "userId", "user_id", "user-id", "UserId", "UserID"},
		KeyEmail:              {string(KeyEmail), "Email", "e-mail"},
		KeyIP:                 {string(KeyIP), "IP", "ipAddress", "ip_address"},
		KeyUserAgent:          {string(KeyUserAgent), "user_agent", "user-agent", "UserAgent"},
		KeyCountry:            {string(KeyCountry), "Country"},
		KeyLocale:             {string(KeyLocale), "Locale"},
		KeyAppVersion:         {string(KeyAppVersion), "app_version", "app-version", "AppVersion"},
		KeyCustom:             {string(KeyCustom), "Custom"},
		KeyPrivateAttributes:  {string(KeyPrivateAttributes), "private_attributes", "private-attributes", "PrivateAttributes"},
		KeyCustomIDs:          {string(KeyCustomIDs), "customIds", "custom_ids", "custom-ids", "CustomIDs"},
		KeyStatsigEnvironment: {string(KeyStatsigEnvironment), "statsig_environment", "StatsigEnvironment"},
	} {
		for _, value := range values {
			keyMap[value] = k
		}
	}
	return keyMap
}
