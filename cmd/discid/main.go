// Command discid identifies an optical audio disc, either from a physical
// drive or from a textually supplied table of contents, and prints its
// MusicBrainz, FreeDB, and AccurateRip identifiers.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/cdtoc/discid/cdtext"
	"github.com/cdtoc/discid/device"
	"github.com/cdtoc/discid/discimage"
	"github.com/cdtoc/discid/idengine"
	"github.com/cdtoc/discid/isrc"
	"github.com/cdtoc/discid/toc"
	"github.com/cdtoc/discid/tocdialect"
	"github.com/cdtoc/discid/tocreader"
)

// Exit codes, per the core's error taxonomy.
const (
	exitOk            = 0
	exitUsageError    = 64
	exitDataError     = 65
	exitUnavailable   = 69
	exitSoftwareError = 70
	exitIoError       = 74
)

var (
	devicePath  = flag.String("device", "", "path to an optical drive (from-device mode)")
	textInput   = flag.String("text", "", "textual TOC to parse (from-text mode)")
	imagePath   = flag.String("image", "", "CHD disc image to read (from-image mode)")
	dialectName = flag.String("dialect", "", "TOC dialect for -text: raw, musicbrainz, accuraterip, freedb (auto-detect if omitted)")
	scanISRC    = flag.Bool("isrc", false, "scan Q-subchannel for per-track ISRCs and disc MCN (from-device only)")
	quiet       = flag.Bool("quiet", false, "suppress non-fatal diagnostic text")
	version     = flag.Bool("version", false, "print version and exit")
)

const appVersion = "0.1.0"

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [-device <path> | -text <toc> | -image <file>] [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Identifies an optical audio disc.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -device /dev/sr0 -isrc\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -text \"1 12 198592 150 17477 32100\" -dialect musicbrainz\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -image disc.chd\n", os.Args[0])
	}
	flag.Parse()

	if *version {
		fmt.Printf("discid version %s\n", appVersion)
		os.Exit(exitOk)
	}

	modes := 0
	for _, s := range []string{*devicePath, *textInput, *imagePath} {
		if s != "" {
			modes++
		}
	}
	if modes != 1 {
		fmt.Fprintf(os.Stderr, "Error: exactly one of -device, -text, -image is required\n")
		flag.Usage()
		os.Exit(exitUsageError)
	}

	switch {
	case *devicePath != "":
		os.Exit(runFromDevice(*devicePath, *scanISRC, *quiet))
	case *textInput != "":
		os.Exit(runFromText(*textInput, *dialectName))
	default:
		os.Exit(runFromImage(*imagePath, *quiet))
	}
}

func runFromDevice(path string, withISRC, quiet bool) int {
	sess, err := device.Open(path, nil)
	if err != nil {
		return reportDeviceError("open device", err)
	}
	defer func() { _ = sess.Close() }()

	t, err := tocreader.Read(sess)
	if err != nil {
		return reportDeviceError("read TOC", err)
	}

	var ct *cdtext.CdText
	blob, err := tocreader.ReadCDText(sess)
	if err == nil {
		var diags []cdtext.Diagnostic
		ct, diags = cdtext.Parse(blob)
		if !quiet {
			for _, d := range diags {
				fmt.Fprintf(os.Stderr, "cd-text: %s\n", d.Message)
			}
		}
	} else if !isUnsupported(err) {
		return reportDeviceError("read CD-Text", err)
	}

	if withISRC {
		result, serr := isrc.Scan(sess, t)
		if serr != nil {
			return reportDeviceError("scan ISRC", serr)
		}
		if result.MCN != "" {
			fmt.Printf("MCN: %s\n", result.MCN)
		}
		for _, tr := range result.Tracks {
			if tr.Confirmed {
				t.SetISRC(tr.Track, tr.ISRC)
			}
		}
	}

	printResult(t, ct)
	return exitOk
}

func runFromText(text, dialectName string) int {
	dialect := tocdialect.Indeterminate
	if dialectName != "" {
		d, err := parseDialectName(dialectName)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return exitUsageError
		}
		dialect = d
	}

	t, err := tocdialect.Parse(text, dialect)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitDataError
	}

	printResult(t, nil)
	return exitOk
}

func runFromImage(path string, quiet bool) int {
	img, err := discimage.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitIoError
	}
	defer func() { _ = img.Close() }()

	t, err := img.ToToc()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitDataError
	}

	ct, diags, err := img.ExtractCDText()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitDataError
	}
	if !quiet {
		for _, d := range diags {
			fmt.Fprintf(os.Stderr, "cd-text: %s\n", d.Message)
		}
	}

	printResult(t, ct)
	return exitOk
}

func parseDialectName(name string) (tocdialect.Dialect, error) {
	switch name {
	case "raw":
		return tocdialect.Raw, nil
	case "musicbrainz":
		return tocdialect.MusicBrainz, nil
	case "accuraterip":
		return tocdialect.AccurateRip, nil
	case "freedb":
		return tocdialect.FreeDB, nil
	default:
		return tocdialect.Indeterminate, fmt.Errorf("unknown dialect %q", name)
	}
}

func printResult(t *toc.Toc, ct *cdtext.CdText) {
	ids := idengine.Calculate(t)
	fmt.Printf("Disc type: %s\n", toc.Classify(t.Tracks))
	fmt.Printf("Tracks: %d (audio %d, data %d)\n", t.TrackCount, t.AudioCount, t.DataCount)
	fmt.Printf("MusicBrainz: %s\n", ids.MusicBrainz)
	fmt.Printf("FreeDB: %s\n", ids.FreeDB)
	fmt.Printf("AccurateRip: %s\n", ids.AccurateRip)

	for _, tr := range t.Tracks {
		if tr.ISRC != "" {
			fmt.Printf("  Track %d ISRC: %s\n", tr.Number, tr.ISRC)
		}
	}

	if ct != nil {
		if ct.Album.Title != nil {
			fmt.Printf("Album: %s\n", *ct.Album.Title)
		}
		if ct.Album.Performer != nil {
			fmt.Printf("Performer: %s\n", *ct.Album.Performer)
		}
	}
}

func isUnsupported(err error) bool {
	var derr *device.Error
	return errors.As(err, &derr) && derr.Kind == device.KindUnsupportedCommand
}

func reportDeviceError(op string, err error) int {
	var derr *device.Error
	if errors.As(err, &derr) {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", op, err)
		switch derr.Kind {
		case device.KindMediaAbsent:
			return exitUnavailable
		case device.KindAccessDenied, device.KindBusy:
			return exitUnavailable
		case device.KindUnsupportedCommand:
			return exitSoftwareError
		default:
			return exitIoError
		}
	}
	fmt.Fprintf(os.Stderr, "Error: %s: %v\n", op, err)
	return exitSoftwareError
}
