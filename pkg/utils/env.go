package utils

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

// LoadEnv loads the .env file for the given environment. Looks for
// .env.<env> first, then falls back to .env.local and .env.
func LoadEnv(env string) error {
	candidates := []string{".env.local", ".env"}
	if env != "" {
		candidates = append([]string{fmt.Sprintf(".env.%s", env)}, candidates...)
	}
	for _, file := range candidates {
		if _, err := os.Stat(file); err == nil {
			return godotenv.Load(file)
		}
	}
	return fmt.Errorf("no .env file found")
}

// GetEnv gets an environment variable value
func GetEnv(key string) string {
	return os.Getenv(key)
}

// GetBoolEnv gets a boolean environment variable value
func GetBoolEnv(key string) bool {
	return cast.ToBool(os.Getenv(key))
}

// GetIntEnv gets an integer environment variable value
func GetIntEnv(key string) int64 {
	return cast.ToInt64(os.Getenv(key))
}

// GetFloatEnv gets a float environment variable value
func GetFloatEnv(key string) float64 {
	return cast.ToFloat64(os.Getenv(key))
}
