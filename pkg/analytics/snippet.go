package analytics

import "fmt"

const trackingSnippetTemplate = `<script>
var _gaq=[["_setAccount","%s"],["_trackPageview"]];
(function(d,t){var g=d.createElement(t),s=d.getElementsByTagName(t)[0];g.async=1;
g.src=("https:"==location.protocol?"//ssl":"//www")+".google-analytics.com/ga.js";
s.parentNode.insertBefore(g,s)}(document,"script"));
</script>
`

// TrackingSnippet returns the asynchronous ga.js page tracking snippet
// for a web property tracking id such as UA-12345-1.
func TrackingSnippet(trackingID string) (string, error) {
	if trackingID == "" {
		return "", &ConfigurationError{Message: "missing tracking id (UA-XXXXX-X)"}
	}
	return fmt.Sprintf(trackingSnippetTemplate, trackingID), nil
}

// GetTrackingSnippet is TrackingSnippet exposed on the session.
func (c *Client) GetTrackingSnippet(trackingID string) (string, error) {
	return TrackingSnippet(trackingID)
}
