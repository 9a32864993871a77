package scoring

// Keyword tables backing relevance, impact, and categorization. Matching is
// case-insensitive substring matching over title+body text.

var boroughTerms = []string{
	"new york city", "nyc", "manhattan", "brooklyn", "queens", "the bronx",
	"bronx", "staten island",
}

var neighborhoodTerms = []string{
	"astoria", "williamsburg", "harlem", "bushwick", "park slope",
	"flushing", "long island city", "upper west side", "upper east side",
	"greenpoint", "crown heights", "bed-stuy", "bedford-stuyvesant",
	"jackson heights", "sunset park", "fort greene", "east village",
	"west village", "lower east side", "chinatown", "tribeca", "soho",
	"chelsea", "midtown", "financial district", "red hook", "ridgewood",
	"washington heights", "inwood", "forest hills", "bay ridge",
}

var transitTerms = []string{
	"subway", "mta", "train", "bus route", "bus service", "ferry", "lirr",
	"metro-north", "amtrak", "station", "track work", "service change",
	"commute", "transit",
}

var landmarkTerms = []string{
	"central park", "times square", "prospect park", "brooklyn bridge",
	"yankee stadium", "citi field", "coney island", "lincoln center",
	"bryant park", "union square", "madison square garden", "high line",
	"grand central", "penn station",
}

var governmentTerms = []string{
	"city council", "mayor", "city hall", "borough president", "comptroller",
	"community board", "public advocate", "department of", "city agency",
	"legislation", "zoning",
}

var localSources = []string{
	"gothamist", "the city", "amny", "ny1", "patch", "brooklyn paper",
	"streetsblog", "eater ny", "curbed", "mta", "nyc parks", "notify nyc",
	"311",
}

var highImpactTerms = []string{
	"emergency", "evacuation", "evacuate", "shutdown", "suspended",
	"closure", "closed until", "outage", "strike", "flood", "derail",
	"state of emergency", "boil water",
}

var mediumImpactTerms = []string{
	"delay", "disruption", "detour", "protest", "rally", "construction",
	"price increase", "fare hike", "rent increase", "reopening", "reopens",
	"water main",
}

var civicImpactTerms = []string{
	"vote", "election", "ballot", "budget", "public hearing",
	"public comment", "town hall",
}

// typeImpactAdjust shifts the impact score by content-type tag. Housing
// listings are penalized so classifieds don't crowd out news.
var typeImpactAdjust = map[string]int{
	"alert":   20,
	"transit": 15,
	"weather": 10,
	"deal":    5,
	"housing": -25,
}

var breakingTerms = []string{
	"breaking", "emergency", "urgent", "evacuation", "active shooter",
	"explosion", "major fire",
}

var essentialTerms = []string{
	"subway", "mta", "train", "bus", "ferry", "commute", "transit",
	"weather", "storm", "snow", "rain", "heat advisory", "air quality",
}

var moneyTerms = []string{
	"free", "sale", "discount", "deal", "bogo", "happy hour", "half off",
	"no cover",
}

var cultureTerms = []string{
	"concert", "festival", "museum", "art show", "exhibit", "theater",
	"theatre", "live music", "comedy", "film screening", "gallery",
	"performance",
}

var civicTerms = []string{
	"city council", "mayor", "election", "vote", "budget", "zoning",
	"public hearing", "policy", "legislation", "community board",
}

var lifestyleTerms = []string{
	"restaurant", "food", "brunch", "coffee", "health", "fitness",
	"wellness", "guide", "tips", "best of", "things to do",
}
