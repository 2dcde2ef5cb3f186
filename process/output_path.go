package process

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"cssprune/config"
	"cssprune/state"
)

const defaultSuffix = ".pruned"

// buildOutputPath returns output file path for stylesheet "src" (relative to
// processed root) under "dst". It uses either default naming scheme or
// user-defined template and takes into account whether to preserve source
// directory structure. Path segments are cleaned and transliterated if
// requested.
func buildOutputPath(src, dst, charset string, env *state.LocalEnv) string {
	outDir := determineOutputDir(src, dst, env)
	defaultFile := buildDefaultFileName(src, env)

	if env.Cfg.Output.NameTemplate == "" {
		return filepath.Join(outDir, defaultFile)
	}

	expandedName := expandOutputNameTemplate(src, charset, env)
	if expandedName == "" {
		// fallback to default name if template expansion failed
		return filepath.Join(outDir, defaultFile)
	}
	return assemblePathWithSubdirs(outDir, expandedName, env)
}

func determineOutputDir(src, dst string, env *state.LocalEnv) string {
	if env.NoDirs {
		return dst
	}
	return filepath.Join(dst, filepath.Dir(src))
}

func buildDefaultFileName(src string, env *state.LocalEnv) string {
	ext := filepath.Ext(src)
	baseName := strings.TrimSuffix(filepath.Base(src), ext)
	return cleanPathSegment(baseName, env) + defaultSuffix + ext
}

func expandOutputNameTemplate(src, charset string, env *state.LocalEnv) string {
	values := newValues(config.OutputNameTemplateFieldName, src, charset)
	expandedName, err := expandTemplate(config.OutputNameTemplateFieldName, env.Cfg.Output.NameTemplate, values)
	if err != nil {
		env.Log.Warn("Unable to prepare output filename", zap.Error(err))
		return ""
	}
	return strings.TrimSpace(filepath.FromSlash(expandedName))
}

// assemblePathWithSubdirs takes an expanded template name (which may contain
// path separators for subdirectories) and assembles it into a full output path.
func assemblePathWithSubdirs(outDir, expandedName string, env *state.LocalEnv) string {
	pathSegments := splitPath(expandedName)
	if len(pathSegments) == 0 {
		return outDir
	}

	dirParts := make([]string, 0, len(pathSegments)+1)
	dirParts = append(dirParts, outDir)
	for _, segment := range pathSegments[:len(pathSegments)-1] {
		dirParts = append(dirParts, cleanPathSegment(segment, env))
	}

	// file extension is kept as expanded
	fileName := pathSegments[len(pathSegments)-1]
	ext := filepath.Ext(fileName)
	dirParts = append(dirParts, cleanPathSegment(strings.TrimSuffix(fileName, ext), env)+ext)
	return filepath.Join(dirParts...)
}

// splitPath breaks path into segments dropping empty, "." and ".." ones so
// expanded name cannot escape output directory.
func splitPath(path string) []string {
	segments := make([]string, 0, 8)
	for path != "" {
		dir, file := filepath.Split(path)
		if file != "" && file != "." && file != ".." {
			segments = slices.Insert(segments, 0, file)
		}
		next := strings.TrimRight(dir, string(filepath.Separator))
		if next == path {
			// volume name
			break
		}
		path = next
	}
	return segments
}

func cleanPathSegment(segment string, env *state.LocalEnv) string {
	if env.Cfg.Output.FileNameTransliterate {
		segment = slug.Make(segment)
	}
	return config.CleanFileName(segment)
}
