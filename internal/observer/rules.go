package observer

// Rules are the host-page lookups, in priority order.
type Rules struct {
	ContainerSelectors []string `mapstructure:"container_selectors"`
	ContentSelectors   []string `mapstructure:"content_selectors"`
}

func DefaultRules() Rules {
	return Rules{
		ContainerSelectors: []string{
			`[data-test-id="main-feed-activity-card"]`,
			`.feed-shared-update-v2`,
		},
		ContentSelectors: []string{
			`.feed-shared-text .break-words`,
			`.feed-shared-text`,
			`.feed-shared-update-v2__description .break-words`,
			`.artdeco-entity-lockup__content .break-words`,
			`[data-test-id="post-content"] .break-words`,
		},
	}
}
