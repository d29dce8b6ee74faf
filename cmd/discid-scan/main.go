// Command discid-scan walks a local directory of CHD disc images and
// prints the computed identifiers for each one. It performs no network
// I/O; it is a batch convenience over the same from-image path discid's
// -image flag exercises one file at a time.
package main

import (
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cdtoc/discid/discimage"
	"github.com/cdtoc/discid/idengine"
)

var (
	dir   = flag.String("dir", ".", "directory to scan for .chd files")
	quiet = flag.Bool("quiet", false, "suppress per-file error text")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [-dir <directory>]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Scans a directory for .chd files and prints their identifiers.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	failures := 0
	err := filepath.WalkDir(*dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".chd") {
			return nil
		}
		if scanErr := scanOne(path); scanErr != nil {
			failures++
			if !*quiet {
				fmt.Fprintf(os.Stderr, "%s: %v\n", path, scanErr)
			}
		}
		return nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: walk %s: %v\n", *dir, err)
		os.Exit(1)
	}
	if failures > 0 {
		os.Exit(1)
	}
}

func scanOne(path string) error {
	img, err := discimage.Open(path)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer func() { _ = img.Close() }()

	t, err := img.ToToc()
	if err != nil {
		return fmt.Errorf("toc: %w", err)
	}

	ids := idengine.Calculate(t)
	fmt.Printf("%s\tmusicbrainz=%s\tfreedb=%s\taccuraterip=%s\n",
		path, ids.MusicBrainz, ids.FreeDB, ids.AccurateRip)
	return nil
}
