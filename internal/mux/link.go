package mux

import (
	"os"
	"syscall"
)

// Link implements spec.md §4.G "Link (hard link)": if the create policy
// is path-preserving (ep*) and the target's parent does not exist on
// the source file's branch, fail with EXDEV. Otherwise create a hard
// link on the source branch. Hard-linking to a directory is refused
// with EPERM.
func (m *Multiplexer) Link(sourcePath, targetPath string) (Stat, error) {
	sp := m.searchPolicy()
	bs, err := sp.Search(m.engine(), m.Branches.All(), sourcePath)
	if err != nil {
		return Stat{}, err
	}
	srcBranch := bs[0]

	srcFull := srcBranch.FullPath(sourcePath)
	fi, err := os.Lstat(srcFull)
	if err != nil {
		return Stat{}, err
	}
	if fi.IsDir() {
		return Stat{}, syscall.EPERM
	}

	rec := m.Config.Get()
	if isPathPreservingPolicy(rec.CreatePolicy) {
		parent := parentOf(targetPath)
		exists, _, err := m.Exists.Exists(srcBranch, parent)
		if err != nil {
			return Stat{}, err
		}
		if !exists {
			return Stat{}, syscall.EXDEV
		}
	}

	targetFull := srcBranch.FullPath(targetPath)
	if err := os.Link(srcFull, targetFull); err != nil {
		return Stat{}, err
	}
	newFi, err := os.Lstat(targetFull)
	if err != nil {
		return Stat{}, err
	}
	return m.statFromFileInfo(srcBranch, targetPath, newFi), nil
}

func isPathPreservingPolicy(name string) bool {
	switch name {
	case "epff", "epmfs", "eplfs":
		return true
	default:
		return false
	}
}

func parentOf(unifiedPath string) string {
	i := len(unifiedPath) - 1
	for i > 0 && unifiedPath[i] == '/' {
		i--
	}
	trimmed := unifiedPath[:i+1]
	for j := len(trimmed) - 1; j >= 0; j-- {
		if trimmed[j] == '/' {
			if j == 0 {
				return "/"
			}
			return trimmed[:j]
		}
	}
	return "/"
}

// Readlink implements spec.md §4.G "Readlink": search policy → first
// existing → backing readlink.
func (m *Multiplexer) Readlink(unifiedPath string) (string, error) {
	sp := m.searchPolicy()
	bs, err := sp.Search(m.engine(), m.Branches.All(), unifiedPath)
	if err != nil {
		return "", err
	}
	return os.Readlink(bs[0].FullPath(unifiedPath))
}
