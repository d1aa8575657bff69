//go:build !unix

package main

func ignoreStopSignals() {}
