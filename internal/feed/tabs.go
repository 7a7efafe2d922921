package feed

// Tabs lists the feed partitions the server understands, in display
// order. Each has independent pagination and an independent snapshot.
var Tabs = []string{"all", "trailers", "ott", "intheatres", "comingsoon"}

// NormalizeTab coerces unrecognized tab names to "all" rather than
// letting them reach the server.
func NormalizeTab(tab string) string {
	for _, t := range Tabs {
		if tab == t {
			return t
		}
	}
	return "all"
}
