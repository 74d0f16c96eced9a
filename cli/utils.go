package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sigauth/sigauth/pkg/config/definition"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// addConfigFlags registers one persistent flag per registry field that declares a CLI flag.
func addConfigFlags(flags *pflag.FlagSet) {
	for _, field := range definition.CreateRegistry().Fields() {
		if field.CLIFlag == "" {
			continue
		}
		switch field.Type.Kind() {
		case reflect.Bool:
			def, _ := field.Default.(bool)
			flags.BoolP(field.CLIFlag, field.Shorthand, def, field.Help)
		case reflect.Int:
			def, _ := field.Default.(int)
			flags.IntP(field.CLIFlag, field.Shorthand, def, field.Help)
		default:
			flags.StringP(field.CLIFlag, field.Shorthand, fmt.Sprint(field.Default), field.Help)
		}
	}
}

// extractCLIFlags extracts command line flags from a cobra command into a map.
// It processes only flags that have been explicitly changed by the user.
func extractCLIFlags(cmd *cobra.Command, flags map[string]any) {
	fs := cmd.Flags()
	for _, field := range definition.CreateRegistry().Fields() {
		if field.CLIFlag == "" || !fs.Changed(field.CLIFlag) {
			continue
		}
		var (
			value any
			err   error
		)
		switch field.Type.Kind() {
		case reflect.Bool:
			value, err = fs.GetBool(field.CLIFlag)
		case reflect.Int:
			value, err = fs.GetInt(field.CLIFlag)
		default:
			value, err = fs.GetString(field.CLIFlag)
		}
		if err == nil {
			flags[field.CLIFlag] = value
		}
	}
}

// loadEnvFile loads environment variables from a file with security validation
func loadEnvFile(cmd *cobra.Command) (string, error) {
	envFile, err := cmd.Flags().GetString(flagEnvFile)
	if err != nil {
		return "", fmt.Errorf("failed to get env-file flag: %w", err)
	}
	if envFile == "" {
		return "", nil
	}
	pwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current working directory: %w", err)
	}
	if !filepath.IsAbs(envFile) {
		envFile = filepath.Join(pwd, envFile)
	}
	absPath, err := filepath.Abs(filepath.Clean(envFile))
	if err != nil {
		return "", fmt.Errorf("failed to resolve env file path: %w", err)
	}
	if !isPathWithinDirectory(absPath, pwd) {
		return "", fmt.Errorf("env file path '%s' is outside the working directory", envFile)
	}
	fileInfo, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return absPath, nil
		}
		return "", fmt.Errorf("failed to stat env file: %w", err)
	}
	if !fileInfo.Mode().IsRegular() {
		return "", fmt.Errorf("env file path '%s' is not a regular file", envFile)
	}
	if err := godotenv.Load(absPath); err != nil {
		return "", fmt.Errorf("failed to load env file %s: %w", absPath, err)
	}
	return absPath, nil
}

// isPathWithinDirectory checks if a given path is within the specified directory
func isPathWithinDirectory(path, dir string) bool {
	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return false
	}
	absDir, err := filepath.Abs(filepath.Clean(dir))
	if err != nil {
		return false
	}
	if !strings.HasSuffix(absDir, string(filepath.Separator)) {
		absDir += string(filepath.Separator)
	}
	return strings.HasPrefix(absPath, absDir) || absPath == strings.TrimSuffix(absDir, string(filepath.Separator))
}
