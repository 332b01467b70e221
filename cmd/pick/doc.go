// Command pick runs picker batches and manages the local content provider
// without the HTTP service.
//
// Usage:
//
//	pick process [flags] <reference>...
//	pick scan [directory]
//	pick media [--collection images] [--limit 20]
//	pick grant add <content-uri> <path> [--expose-data]
//	pick grant revoke <content-uri>
//	pick grant list
//
// Configuration is read the same way as the service: environment variables
// overlay the TOML file named by --config or PICKER_CONFIG. The provider
// database lives in DATA_DIR, so the service and the command share grants.
//
// Output is a table on a terminal and indented JSON otherwise, or always
// with --json. process exits non-zero when any item failed.
package main
