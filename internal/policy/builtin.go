package policy

// ModePolicy defines the strategy interface for a built-in focus mode.
// Implementations provide the seed allow-list and the sites to block.
type ModePolicy interface {
	// ID returns the mode name used on the command line (e.g., "social").
	ID() string

	// Description returns a one-line summary for listings.
	Description() string

	// AllowedApps returns app display names permitted while active.
	// Names are matched case-insensitively.
	AllowedApps() []string

	// BlockedSites returns domains whose hostnames are redirected while active.
	BlockedSites() []string
}

// ProductivityPolicy allows work tools and blocks entertainment and social sites.
type ProductivityPolicy struct{}

func (ProductivityPolicy) ID() string { return "productivity" }

func (ProductivityPolicy) Description() string { return "Work and focus apps only" }

func (ProductivityPolicy) AllowedApps() []string {
	return []string{
		"Terminal",
		"Finder",
		"Visual Studio Code",
		"Code",
		"Xcode",
		"Notes",
		"Calendar",
		"Mail",
		"Safari",
		"Google Chrome",
		"Microsoft Word",
		"Microsoft Excel",
		"Preview",
	}
}

func (ProductivityPolicy) BlockedSites() []string {
	return []string{
		"facebook.com",
		"instagram.com",
		"twitter.com",
		"x.com",
		"reddit.com",
		"tiktok.com",
		"youtube.com",
		"netflix.com",
	}
}

// CreativityPolicy allows design and writing tools.
type CreativityPolicy struct{}

func (CreativityPolicy) ID() string { return "creativity" }

func (CreativityPolicy) Description() string { return "Design and creative tools" }

func (CreativityPolicy) AllowedApps() []string {
	return []string{
		"Terminal",
		"Finder",
		"Figma",
		"Adobe Photoshop",
		"Adobe Illustrator",
		"Sketch",
		"Blender",
		"Logic Pro",
		"GarageBand",
		"Final Cut Pro",
		"Pages",
		"Notes",
		"Music",
		"Preview",
	}
}

func (CreativityPolicy) BlockedSites() []string {
	return []string{
		"facebook.com",
		"twitter.com",
		"x.com",
		"reddit.com",
		"news.ycombinator.com",
	}
}

// SocialPolicy allows communication and collaboration apps.
type SocialPolicy struct{}

func (SocialPolicy) ID() string { return "social" }

func (SocialPolicy) Description() string { return "Communication and collaboration" }

func (SocialPolicy) AllowedApps() []string {
	return []string{
		"Terminal",
		"Finder",
		"Slack",
		"Discord",
		"zoom.us",
		"Microsoft Teams",
		"Mail",
		"Calendar",
		"FaceTime",
		"Safari",
		"Google Chrome",
	}
}

func (SocialPolicy) BlockedSites() []string {
	return []string{
		"youtube.com",
		"netflix.com",
		"twitch.tv",
	}
}

// Ensure built-in policies implement ModePolicy.
var (
	_ ModePolicy = ProductivityPolicy{}
	_ ModePolicy = CreativityPolicy{}
	_ ModePolicy = SocialPolicy{}
)
