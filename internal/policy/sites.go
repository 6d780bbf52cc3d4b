package policy

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/eliteGoblin/focusd/focusmode/internal/domain"
)

// BlockAddress is where blocked hostnames resolve to.
const BlockAddress = "127.0.0.1"

var commonSubdomains = []string{
	"www", "m", "mobile", "touch", "app", "apps", "api", "cdn", "static", "assets",
}

var socialSubdomains = []string{"graph", "connect", "login", "auth"}

var socialNetworks = []string{"facebook", "instagram", "twitter", "tiktok"}

var youtubeExtraHosts = []string{
	"youtubei.googleapis.com",
	"youtube-ui.l.google.com",
	"youtu.be",
}

var (
	validModeName  = regexp.MustCompile(`^[a-z0-9_-]+$`)
	nonWordChars   = regexp.MustCompile(`[^\w\s-]`)
	separatorChars = regexp.MustCompile(`[-\s]+`)
)

// ValidateModeName rejects names that could escape the modes directory.
func ValidateModeName(name string) error {
	if !validModeName.MatchString(name) {
		return fmt.Errorf("%w: %q", domain.ErrInvalidModeName, name)
	}
	return nil
}

// NormalizeModeName turns a free-form name into a file-safe mode name:
// punctuation dropped, runs of spaces/dashes become "_", lower case.
// "Deep Work!" becomes "deep_work".
func NormalizeModeName(name string) string {
	clean := strings.TrimSpace(nonWordChars.ReplaceAllString(name, ""))
	clean = separatorChars.ReplaceAllString(clean, "_")
	return strings.ToLower(clean)
}

// CleanSite strips scheme and path from a site, leaving the bare domain.
func CleanSite(site string) string {
	s := strings.TrimSpace(site)
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	if i := strings.Index(s, "/"); i >= 0 {
		s = s[:i]
	}
	return strings.ToLower(s)
}

// ExpandBlockedSites builds a block table covering each domain and its common subdomains.
// Social networks get their login endpoints too; YouTube gets its API hosts.
func ExpandBlockedSites(sites []string) *domain.BlockTable {
	table := &domain.BlockTable{}
	seen := make(map[string]struct{})

	for _, site := range sites {
		domainName := CleanSite(site)
		if domainName == "" {
			continue
		}

		hosts := []string{domainName}
		for _, sub := range commonSubdomains {
			hosts = append(hosts, sub+"."+domainName)
		}
		for _, social := range socialNetworks {
			if strings.Contains(domainName, social) {
				for _, sub := range socialSubdomains {
					hosts = append(hosts, sub+"."+domainName)
				}
				break
			}
		}
		if strings.Contains(domainName, "youtube") {
			hosts = append(hosts, youtubeExtraHosts...)
		}

		var fresh []string
		for _, h := range hosts {
			if _, dup := seen[h]; dup {
				continue
			}
			seen[h] = struct{}{}
			fresh = append(fresh, h)
		}
		if len(fresh) > 0 {
			table.Entries = append(table.Entries, domain.HostEntry{Address: BlockAddress, Hostnames: fresh})
		}
	}
	return table
}
