package notify

import (
	"fmt"
	"strconv"
	"strings"
)

// ChannelOptions carries what channel constructors need beyond the
// identifier itself.
type ChannelOptions struct {
	TelegramToken string
	TelegramAPI   string
	WebhookSecret string
	Broker        EventBroker
}

// ParseChannels builds notifiers from a comma separated list of channel
// identifiers plus the legacy comma separated telegram chat id list.
// Duplicate identifiers are collapsed.
func ParseChannels(channels, legacyChatIDs string, opts ChannelOptions) ([]Notifier, error) {
	var out []Notifier
	seen := map[string]bool{}
	add := func(n Notifier) {
		if !seen[n.Name()] {
			seen[n.Name()] = true
			out = append(out, n)
		}
	}

	for _, raw := range splitList(legacyChatIDs) {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("notify: chat id %q is not an integer", raw)
		}
		add(telegram(id, opts))
	}

	for _, raw := range splitList(channels) {
		kind, target, ok := strings.Cut(raw, ":")
		if !ok || target == "" {
			return nil, fmt.Errorf("notify: channel %q must be kind:target", raw)
		}
		switch kind {
		case "telegram":
			id, err := strconv.ParseInt(target, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("notify: telegram chat id %q is not an integer", target)
			}
			add(telegram(id, opts))
		case "webhook":
			if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
				return nil, fmt.Errorf("notify: webhook %q must be an http(s) URL", target)
			}
			add(NewWebhook(target, opts.WebhookSecret))
		case "stream":
			if opts.Broker == nil {
				return nil, fmt.Errorf("notify: channel %q needs an event broker", raw)
			}
			add(&Stream{Topic: target, Broker: opts.Broker})
		default:
			return nil, fmt.Errorf("notify: unknown channel kind %q", kind)
		}
	}

	for _, n := range out {
		if Kind(n.Name()) == "telegram" && opts.TelegramToken == "" {
			return nil, fmt.Errorf("notify: %s requires a telegram token", n.Name())
		}
	}
	return out, nil
}

func telegram(id int64, opts ChannelOptions) *Telegram {
	t := NewTelegram(opts.TelegramToken, id)
	if opts.TelegramAPI != "" {
		t.APIURL = opts.TelegramAPI
	}
	return t
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
