// Package controlfile implements the virtual `/.mergerfs` entry's
// extended-attribute surface (spec.md §4.H): a zero-size regular file,
// never physically stored on any branch, whose getxattr/setxattr/
// listxattr operations are intercepted and routed to the in-process
// configuration record instead of touching a backing filesystem.
//
// Grounded on rclone's pattern of a small validating setter per
// config field (rclone's fs/config package validates each option string
// before assignment the same way) adapted to the xattr key namespace
// spec.md names explicitly.
package controlfile

import (
	"fmt"

	"github.com/mergerfs-go/mergerfs/internal/config"
	"github.com/mergerfs-go/mergerfs/internal/inodecalc"
	"github.com/mergerfs-go/mergerfs/internal/policy"
)

const (
	KeyVersion            = "user.mergerfs.version"
	KeyPID                = "user.mergerfs.pid"
	KeyFuncCreate         = "user.mergerfs.func.create"
	KeyFuncSearch         = "user.mergerfs.func.search"
	KeyFuncAction         = "user.mergerfs.func.action"
	KeyMoveOnENOSPC       = "user.mergerfs.moveonenospc"
	KeyCacheFiles         = "user.mergerfs.cache.files"
	KeyInodeCalc          = "user.mergerfs.inodecalc"
	KeyDirectIO           = "user.mergerfs.direct_io"
	KeyIgnorePPOnRename   = "user.mergerfs.ignorepponrename"
	KeyStatfs             = "user.mergerfs.statfs"
	KeyStatfsIgnore       = "user.mergerfs.statfs.ignore"
)

// Keys lists every recognized key, the order listxattr reports them in.
func Keys() []string {
	return []string{
		KeyVersion, KeyPID,
		KeyFuncCreate, KeyFuncSearch, KeyFuncAction,
		KeyMoveOnENOSPC, KeyCacheFiles, KeyInodeCalc,
		KeyDirectIO, KeyIgnorePPOnRename,
		KeyStatfs, KeyStatfsIgnore,
	}
}

// ErrUnknownKey is returned by Get/Set for a key outside Keys(); the
// multiplexer maps it to ENODATA/ENOATTR per spec.md §4.H.
type ErrUnknownKey struct{ Key string }

func (e *ErrUnknownKey) Error() string { return fmt.Sprintf("controlfile: unknown key %q", e.Key) }

// ErrReadOnlyKey is returned by Set for version/pid; the multiplexer
// maps it to EROFS.
type ErrReadOnlyKey struct{ Key string }

func (e *ErrReadOnlyKey) Error() string { return fmt.Sprintf("controlfile: key %q is read-only", e.Key) }

// Get renders the current value of key as the UTF-8 byte string
// getxattr replies with.
func Get(store *config.Store, key string) (string, error) {
	rec := store.Get()
	switch key {
	case KeyVersion:
		return store.Version(), nil
	case KeyPID:
		return fmt.Sprintf("%d", store.PID()), nil
	case KeyFuncCreate:
		return rec.CreatePolicy, nil
	case KeyFuncSearch:
		return rec.SearchPolicy, nil
	case KeyFuncAction:
		return rec.ActionPolicy, nil
	case KeyMoveOnENOSPC:
		return rec.MoveOnENOSPC.String(), nil
	case KeyCacheFiles:
		return rec.CacheFiles.String(), nil
	case KeyInodeCalc:
		return rec.InodeCalc.String(), nil
	case KeyDirectIO:
		return config.FormatBool(rec.DirectIO), nil
	case KeyIgnorePPOnRename:
		return config.FormatBool(rec.IgnorePPOnRename), nil
	case KeyStatfs:
		return rec.StatfsMode.String(), nil
	case KeyStatfsIgnore:
		return rec.StatfsIgnoreBranch, nil
	default:
		return "", &ErrUnknownKey{Key: key}
	}
}

// Set parses, validates and atomically applies a new value for key.
// Invalid values never partially mutate state: the record is read,
// modified in a local copy, and only swapped back via store.Set once
// every field of the copy is known-valid (spec.md §4.H: "Invalid values
// never partially mutate state").
func Set(store *config.Store, key, value string) error {
	rec := store.Get()
	switch key {
	case KeyVersion, KeyPID:
		return &ErrReadOnlyKey{Key: key}
	case KeyFuncCreate:
		if _, err := policy.GetCreate(value); err != nil {
			return err
		}
		rec.CreatePolicy = value
	case KeyFuncSearch:
		if _, err := policy.GetSearch(value); err != nil {
			return err
		}
		rec.SearchPolicy = value
	case KeyFuncAction:
		if _, err := policy.GetAction(value); err != nil {
			return err
		}
		rec.ActionPolicy = value
	case KeyMoveOnENOSPC:
		v, err := config.ParseMoveOnENOSPC(value)
		if err != nil {
			return err
		}
		rec.MoveOnENOSPC = v
	case KeyCacheFiles:
		v, err := config.ParseCacheFilesMode(value)
		if err != nil {
			return err
		}
		rec.CacheFiles = v
	case KeyInodeCalc:
		v, err := inodecalc.ParseMode(value)
		if err != nil {
			return err
		}
		rec.InodeCalc = v
	case KeyDirectIO:
		v, err := config.ParseBool(value)
		if err != nil {
			return err
		}
		rec.DirectIO = v
	case KeyIgnorePPOnRename:
		v, err := config.ParseBool(value)
		if err != nil {
			return err
		}
		rec.IgnorePPOnRename = v
	case KeyStatfs:
		switch value {
		case "base":
			rec.StatfsMode = config.StatfsFull
		case "ignore":
			rec.StatfsMode = config.StatfsIgnoreRO
		default:
			return fmt.Errorf("controlfile: unknown statfs mode %q", value)
		}
	case KeyStatfsIgnore:
		switch value {
		case "", "ro", "nc":
			rec.StatfsIgnoreBranch = value
		default:
			return fmt.Errorf("controlfile: unknown statfs.ignore value %q", value)
		}
	default:
		return &ErrUnknownKey{Key: key}
	}
	store.Set(rec)
	return nil
}
