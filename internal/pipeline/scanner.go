package pipeline

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Source is a discovered TIFF file.
type Source struct {
	// Path is the file path as found under the input root.
	Path string
	// RelPath is the path relative to the input root ("" for a single file
	// input).
	RelPath string
	// Size is the file size in bytes.
	Size int64
}

// tiffExtensions lists recognized TIFF file extensions, lower case.
var tiffExtensions = map[string]bool{
	".tif":  true,
	".tiff": true,
}

// IsTIFF reports whether path has a .tif or .tiff extension, in any case.
func IsTIFF(path string) bool {
	return tiffExtensions[strings.ToLower(filepath.Ext(path))]
}

// ScanInputs returns the TIFF files named by root, sorted by path. A file
// root yields itself if it is a TIFF. A directory root yields its TIFFs,
// descending into subdirectories only when recursive. Hidden directories and
// the exclude directory (typically the output dir) are skipped.
func ScanInputs(root string, recursive bool, exclude string) ([]Source, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		if !IsTIFF(root) {
			return nil, nil
		}
		return []Source{{Path: root, Size: info.Size()}}, nil
	}

	var excludeAbs string
	if exclude != "" {
		excludeAbs, _ = filepath.Abs(exclude)
	}

	var sources []Source
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path == root {
				return nil
			}
			if !recursive || strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if excludeAbs != "" {
				if abs, _ := filepath.Abs(path); abs == excludeAbs {
					return filepath.SkipDir
				}
			}
			return nil
		}
		if !d.Type().IsRegular() || !IsTIFF(path) {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		sources = append(sources, Source{Path: path, RelPath: rel, Size: fi.Size()})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(sources, func(i, j int) bool { return sources[i].Path < sources[j].Path })
	return sources, nil
}

// OutputDirMode reports whether output names a directory: it already is
// one, or it does not exist yet and the input is a directory.
func OutputDirMode(input, output string) bool {
	if output == "" {
		return false
	}
	if info, err := os.Stat(output); err == nil {
		return info.IsDir()
	}
	info, err := os.Stat(input)
	return err == nil && info.IsDir()
}

// OutputPath derives the JP2 path for src. Without an output the input's
// extension is replaced by .jp2. In directory mode the input's relative
// directory is mirrored under output. Otherwise output is the file itself.
func OutputPath(src Source, output string, dirMode bool) string {
	stem := strings.TrimSuffix(filepath.Base(src.Path), filepath.Ext(src.Path))
	switch {
	case output == "":
		return strings.TrimSuffix(src.Path, filepath.Ext(src.Path)) + ".jp2"
	case dirMode:
		return filepath.Join(output, filepath.Dir(src.RelPath), stem+".jp2")
	default:
		return output
	}
}
