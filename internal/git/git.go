package git

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

type ChangedFile struct {
	Path         string
	ChangedLines []int
}

// chunkHeader matches `@@ -oldStart,oldLen +newStart,newLen @@`; only the
// new side is kept.
var chunkHeader = regexp.MustCompile(`^@@ \-\d+(?:,\d+)? \+(\d+)(?:,(\d+))? @@`)

// GetChangedFiles runs git diff in dir against baseRef and returns the Java
// files changed since, with their added or modified line numbers.
func GetChangedFiles(ctx context.Context, dir, baseRef string) ([]ChangedFile, error) {
	cmd := exec.CommandContext(ctx, "git", "-C", dir, "diff", "-U0", baseRef, "--", "*.java")
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git diff failed: %w", err)
	}

	return parseDiff(output)
}

// RepoRoot returns the top-level directory of the work tree containing dir.
func RepoRoot(ctx context.Context, dir string) (string, error) {
	out, err := exec.CommandContext(ctx, "git", "-C", dir, "rev-parse", "--show-toplevel").Output()
	if err != nil {
		return "", fmt.Errorf("git rev-parse failed: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

func parseDiff(output []byte) ([]ChangedFile, error) {
	scanner := bufio.NewScanner(bytes.NewReader(output))
	var changes []ChangedFile
	var currentFile *ChangedFile

	flush := func() {
		if currentFile != nil && len(currentFile.ChangedLines) > 0 {
			changes = append(changes, *currentFile)
		}
		currentFile = nil
	}

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, "diff --git"):
			flush()
		case strings.HasPrefix(line, "+++ "):
			// Deleted files have no new side.
			path := strings.TrimPrefix(line, "+++ ")
			if path == "/dev/null" {
				continue
			}
			currentFile = &ChangedFile{Path: strings.TrimPrefix(path, "b/")}
		case strings.HasPrefix(line, "@@") && currentFile != nil:
			matches := chunkHeader.FindStringSubmatch(line)
			if len(matches) < 2 {
				continue
			}
			startLine, _ := strconv.Atoi(matches[1])
			count := 1 // Default length is 1 if omitted
			if matches[2] != "" {
				count, _ = strconv.Atoi(matches[2])
			}
			// A zero count is a pure deletion; nothing exists on the new side.
			for i := 0; i < count; i++ {
				currentFile.ChangedLines = append(currentFile.ChangedLines, startLine+i)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read diff: %w", err)
	}
	flush()

	return changes, nil
}
