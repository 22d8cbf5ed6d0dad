// Package process runs allow-listed local commands as the language model and the risk
// checker, so any CLI that reads a prompt on stdin can back prompt blocks.
package process
