//go:build !linux

package bridge

func setProcessName(string) error { return nil }
