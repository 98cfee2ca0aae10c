// Copyright 2026 The Cubeboot Authors
// SPDX-License-Identifier: Apache-2.0

package integrationconf

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
)

// FileName is the artifact's fixed name inside the home directory of
// whatever account survives the bootstrap.
const FileName = ".datacube_integration.conf"

// The two profile sections. The first points the test suite at the
// real local index driver; the second names a driver that deliberately
// does not exist, for the suite's driver-resolution failure tests.
const (
	defaultSection = "datacube"
	brokenSection  = "no_such_driver_env"

	database = "agdcintegration"

	workingDriver = "default"
	brokenDriver  = "no_such_driver"
)

// File is the generated integration test configuration. Everything
// except the hostname is fixed: the consuming test suite looks up
// these exact section and key names.
type File struct {
	// Hostname is the db_hostname value written into both profiles.
	Hostname string
}

// Path returns the artifact's location for a given home directory.
func Path(home string) string {
	return filepath.Join(home, FileName)
}

// Render produces the artifact's content. The bytes are a pure
// function of Hostname: fixed section order, fixed key order, ": "
// separators, one blank line between sections, trailing newline.
// Rendering the same File twice yields identical bytes.
func (f File) Render() []byte {
	var buffer bytes.Buffer
	writeSection(&buffer, defaultSection, f.Hostname, workingDriver)
	buffer.WriteByte('\n')
	writeSection(&buffer, brokenSection, f.Hostname, brokenDriver)
	return buffer.Bytes()
}

func writeSection(buffer *bytes.Buffer, section, hostname, driver string) {
	fmt.Fprintf(buffer, "[%s]\n", section)
	fmt.Fprintf(buffer, "db_hostname: %s\n", hostname)
	fmt.Fprintf(buffer, "db_database: %s\n", database)
	fmt.Fprintf(buffer, "index_driver: %s\n", driver)
}

// Write atomically replaces the artifact at path: the content is
// written to a temporary file in the same directory, fsynced, and
// renamed into place, so a reader never observes a partial artifact.
// An existing file is overwritten unconditionally; the bootstrap owns
// this artifact and stale content from a previous boot must not
// survive. Created with mode 0644 (the test suite reads it, nothing
// secret is in it).
func (f File) Write(path string) error {
	data := f.Render()
	temporaryPath := path + ".tmp"

	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("creating temporary config artifact: %w", err)
	}

	// Write, sync, close, in that order. If any step fails, remove the
	// temporary file and report the first error.
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing temporary config artifact: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("syncing temporary config artifact: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing temporary config artifact: %w", err)
	}

	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming config artifact into place: %w", err)
	}

	return nil
}
