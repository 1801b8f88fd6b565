// Package config provides configuration management for chapterbase.
//
// Configuration is read from a single YAML file, config.yaml, in the
// configuration directory. The default directory is ~/.config/chapterbase;
// commands accept --config-path to use another one. A missing file is not an
// error: every setting has a default that points at the chapter-base
// deployment.
//
// # Precedence
//
// Values are resolved in this order, later entries winning:
//
//  1. built-in defaults (see GetDefaultConfig)
//  2. config.yaml
//  3. CHAPTERBASE_* environment variables
//  4. command line flags, applied by the cmd package
//
// # Example
//
//	auth:
//	  clientId: 49k8pr50rs8j0011o9hkg8limj
//	  authorizationUrl: https://chapter-base.auth.ap-southeast-1.amazoncognito.com/login
//	  tokenUrl: https://chapter-base.auth.ap-southeast-1.amazoncognito.com/oauth2/token
//	  redirectUri: http://localhost:3000
//	  scopes: [email, openid, phone]
//	  callbackTimeout: 10m
//	api:
//	  baseUrl: http://localhost:5261
//	  timeout: 30s
//	proxy:
//	  listen: localhost:8080
//	logLevel: info
//
// Loaded configuration is validated with go-playground/validator. Problems
// are reported as ConfigurationError values carrying the file, the failing
// fields and suggestions.
package config
