// Package logging provides a simple leveled logging interface for the
// photo tagger.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the LOG_LEVEL environment variable.
// In addition to the console, two optional file sinks exist: an
// error-only application log and a status log that records each
// successfully tagged photo.
package logging
