package config

import "github.com/kelseyhightower/envconfig"

// Credentials are the sign-in secrets, taken from the environment so
// they never have to live in a profile file on disk.
type Credentials struct {
	Email    string `envconfig:"EMAIL"`
	Password string `envconfig:"PASSWORD"`
}

// LoadCredentials reads PICCOMAD_EMAIL and PICCOMAD_PASSWORD.
func LoadCredentials() (Credentials, error) {
	var c Credentials
	if err := envconfig.Process("piccomad", &c); err != nil {
		return Credentials{}, err
	}

	return c, nil
}
