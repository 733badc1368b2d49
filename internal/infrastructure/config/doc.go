// Package config handles loading and validating prodev configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Loading credentials from .env files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Database and broker passwords should be set via environment variables
//     (PRODEV_DATABASE_PASSWORD, or MYSQL_ROOT_PASSWORD for the mysql driver)
//   - Variables already exported in the process environment win over .env files
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Access.BatchSize)
package config
