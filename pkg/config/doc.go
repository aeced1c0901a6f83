/*
Package config layers a YAML file over built-in defaults, the same
flag/config relationship cmd/warren's root command uses: flags parsed
by cobra take precedence over a loaded file, which takes precedence
over Default.
*/
package config
