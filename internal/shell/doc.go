// Package shell puts keg's bin directory on PATH.
//
// keg never edits rc files. `keg shellenv` prints a snippet for the user's
// shell, which they evaluate from their own configuration:
//
//	# bash / zsh
//	eval "$(keg shellenv)"
//
//	# fish
//	keg shellenv fish | source
//
// The shell is taken from the argument, then $SHELL, then the name of the
// parent process.
package shell
