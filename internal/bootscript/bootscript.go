package bootscript

import (
	"os"
	"path/filepath"
	"text/template"

	"github.com/pkg/errors"
	"gitlab.com/k00mi/lfs-pack/internal/safe"
)

const (
	// ShellScript is the POSIX entry point filename.
	ShellScript = "lfs-boot.sh"
	// BatchScript is the Windows entry point filename.
	BatchScript = "lfs-boot.bat"
)

// Params are the named slots of the generated entry points. They are the
// only run-specific state the scripts carry; everything else is fixed
// template text.
type Params struct {
	// Branch is the branch to check out after restoring the store.
	Branch string
	// PackCount is the number of objects held by the archives. It is
	// informational, for progress output only.
	PackCount int
	// ArchiveGlob matches the archive files next to the script.
	ArchiveGlob string
	// StoreDir is the object store location relative to the repository
	// root, in forward-slash form.
	StoreDir string
}

var shellTemplate = template.Must(template.New(ShellScript).Parse(`#!/bin/sh
# Generated by lfs-pack. Unpacks the archives on this branch back into the
# LFS object store, then checks out the original branch. Safe to re-run.
set -e

echo "Restoring {{.PackCount}} LFS objects"

mkdir -p "{{.StoreDir}}"
for archive in {{.ArchiveGlob}}; do
	[ -e "$archive" ] || continue
	echo "Unpacking $archive"
	tar -xzf "$archive" -C "{{.StoreDir}}"
done

git checkout -f "{{.Branch}}"
git lfs checkout

echo "Restored {{.PackCount}} LFS objects on branch {{.Branch}}"
`))

var batchTemplate = template.Must(template.New(BatchScript).Parse(`@echo off
rem Generated by lfs-pack. Unpacks the archives on this branch back into the
rem LFS object store, then checks out the original branch. Safe to re-run.

echo Restoring {{.PackCount}} LFS objects

if not exist "{{.StoreDir}}" mkdir "{{.StoreDir}}"
for %%a in ({{.ArchiveGlob}}) do (
	echo Unpacking %%a
	tar -xzf "%%a" -C "{{.StoreDir}}"
	if errorlevel 1 exit /b 1
)

git checkout -f "{{.Branch}}"
if errorlevel 1 exit /b 1
git lfs checkout
if errorlevel 1 exit /b 1

echo Restored {{.PackCount}} LFS objects on branch {{.Branch}}
`))

// Render writes both platform variants of the entry point into dir. The
// shell variant is marked executable.
func Render(dir string, params Params) error {
	for _, script := range []struct {
		name string
		tmpl *template.Template
		mode os.FileMode
	}{
		{ShellScript, shellTemplate, 0755},
		{BatchScript, batchTemplate, 0644},
	} {
		if err := render(filepath.Join(dir, script.name), script.tmpl, script.mode, params); err != nil {
			return errors.Wrapf(err, "rendering %q", script.name)
		}
	}

	return nil
}

func render(path string, tmpl *template.Template, mode os.FileMode, params Params) error {
	fw, err := safe.CreateFileWriter(path)
	if err != nil {
		return err
	}

	if err := tmpl.Execute(fw, params); err != nil {
		fw.Close()
		return err
	}

	if err := fw.Commit(); err != nil {
		return err
	}

	return os.Chmod(path, mode)
}
