package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig   = "MYTHX_CONFIG"
	EnvAPIURL   = "MYTHX_API_URL"
	EnvAddress  = "MYTHX_ETH_ADDRESS"
	EnvPassword = "MYTHX_PASSWORD"
)

// EnvOverrides holds values read from the environment.
type EnvOverrides struct {
	ConfigPath string
	APIURL     string
	Address    string
	Password   string
}

// ReadEnvOverrides reads the MYTHX_* variables. Unset variables are empty.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath: os.Getenv(EnvConfig),
		APIURL:     os.Getenv(EnvAPIURL),
		Address:    os.Getenv(EnvAddress),
		Password:   os.Getenv(EnvPassword),
	}
}
