package utils

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/kelsos/genjobs/internal/logger"
)

// LoadEnvironment loads GENJOBS_* variables from .env files in the current
// directory and next to the executable. Variables already set in the process
// environment win over both files.
func LoadEnvironment() []string {
	var loaded []string

	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file loaded from current directory: %v", err)
	} else {
		loaded = append(loaded, ".env")
	}

	execPath, err := os.Executable()
	if err != nil {
		logger.Debug("Could not determine executable path: %v", err)
		return loaded
	}

	envPath := filepath.Join(filepath.Dir(execPath), ".env")
	if abs, absErr := filepath.Abs(".env"); absErr == nil && abs == envPath {
		return loaded
	}
	if err := godotenv.Load(envPath); err != nil {
		logger.Debug("No .env file loaded from %s: %v", envPath, err)
	} else {
		loaded = append(loaded, envPath)
	}

	return loaded
}
