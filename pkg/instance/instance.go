package instance

import "github.com/angelmondragon/wishlist-backend/pkg/env"

// GetID identifies the running process in logs: the dyno name on Heroku, WISHLIST_INSTANCE_ID
// elsewhere, "local" otherwise.
func GetID() string {
	if id := env.Get("DYNO", ""); id != "" {
		return id
	}
	return env.Get("WISHLIST_INSTANCE_ID", "local")
}
