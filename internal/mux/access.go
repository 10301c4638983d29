package mux

import "golang.org/x/sys/unix"

func unixAccess(path string, mode uint32) error {
	return unix.Access(path, mode)
}
