// Package file provides file-based implementations of driven port interfaces.
// These adapters persist data to the local filesystem.
//
// Adapters:
//   - ConfigStore: TOML-based configuration storage with ACQGEN_ environment overrides
//   - PromptStore: user-editable prompt templates
//   - PromptWatcher: reloads prompts when their files change
//   - CatalogLoader: YAML document catalogue, with a built-in default
package file
