// Package security provides validation for the locations plugsync fetches
// from and the directories it deletes.
package security

import (
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
)

// scpLike matches git's "user@host:path" shorthand.
var scpLike = regexp.MustCompile(`^[A-Za-z0-9._-]+@[A-Za-z0-9.-]+:[^/].*$|^[A-Za-z0-9._-]+@[A-Za-z0-9.-]+:/.*$`)

// ValidateRepoURL validates a git remote before it is handed to git.
// Accepted forms are https, http, git, ssh and file URLs, the scp-like
// user@host:path shorthand, and local paths. Remote helpers ("ext::") and
// values that git would parse as options are refused.
func ValidateRepoURL(repo string) error {
	if repo == "" {
		return fmt.Errorf("empty repository URL")
	}

	if strings.HasPrefix(repo, "-") {
		return fmt.Errorf("repository URL must not start with '-': %s", repo)
	}

	if strings.Contains(repo, "::") {
		return fmt.Errorf("git remote helpers are not allowed: %s", repo)
	}

	if scpLike.MatchString(repo) {
		return nil
	}

	if !strings.Contains(repo, "://") {
		// Local path.
		return nil
	}

	parsed, err := url.Parse(repo)
	if err != nil {
		return fmt.Errorf("invalid repository URL: %w", err)
	}

	switch strings.ToLower(parsed.Scheme) {
	case "https", "http", "git", "ssh":
		if parsed.Host == "" {
			return fmt.Errorf("repository URL must have a hostname")
		}
	case "file":
	default:
		return fmt.Errorf("invalid repository URL protocol (https, http, git, ssh or file allowed): %s", parsed.Scheme)
	}

	return nil
}

// ValidateDownloadURL validates a URL for a direct file download.
// Only HTTPS from non-local hosts is allowed.
func ValidateDownloadURL(urlStr string) error {
	if urlStr == "" {
		return fmt.Errorf("empty URL")
	}

	parsed, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if !strings.EqualFold(parsed.Scheme, "https") {
		return fmt.Errorf("only HTTPS URLs are allowed (got %s)", parsed.Scheme)
	}

	if parsed.Host == "" {
		return fmt.Errorf("URL must have a hostname")
	}

	// Block localhost and private IPs to prevent SSRF
	host := strings.ToLower(parsed.Hostname())
	if isLocalOrPrivateHost(host) {
		return fmt.Errorf("URL cannot point to local or private hosts: %s", host)
	}

	return nil
}

// ValidateRemovalPath ensures path lies strictly inside baseDir, so a
// recursive delete can never take out the base directory or anything
// outside it.
func ValidateRemovalPath(path, baseDir string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}

	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	absBase, err := filepath.Abs(filepath.Clean(baseDir))
	if err != nil {
		return fmt.Errorf("invalid base directory: %w", err)
	}

	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return fmt.Errorf("refusing to remove %s: not inside %s", absPath, absBase)
	}

	return nil
}

// isLocalOrPrivateHost checks if a hostname is localhost or a private IP.
func isLocalOrPrivateHost(host string) bool {
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}

	ip := net.ParseIP(strings.Trim(host, "[]"))
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified()
}
