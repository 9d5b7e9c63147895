package heuristics

// shortenerDomains are registrable domains of known link shorteners.
var shortenerDomains = []string{
	"bit.ly", "bitly.com", "tinyurl.com", "t.co", "goo.gl", "ow.ly",
	"is.gd", "v.gd", "buff.ly", "rebrand.ly", "cutt.ly", "shorturl.at",
	"tiny.cc", "lnkd.in", "rb.gy", "t.ly", "bl.ink", "s.id",
	"shorte.st", "adf.ly", "bc.vc", "soo.gd", "clck.ru", "qr.ae",
	"db.tt", "amzn.to", "fb.me", "trib.al", "dlvr.it", "tr.im",
}

// suspiciousTLDs are top-level domains with a high share of abuse.
var suspiciousTLDs = []string{
	"tk", "ml", "ga", "cf", "gq", "xyz", "top", "work", "click",
	"link", "zip", "mov", "country", "kim", "loan", "men", "review",
	"download", "racing", "win", "bid", "stream", "party", "science",
	"accountant", "date", "faith", "trade", "webcam", "rest",
}

// trackingParamMarkers are matched case-insensitively as substrings of
// query parameter names.
var trackingParamMarkers = []string{
	// campaign tagging
	"utm_", "campaign", "hsa_", "mkt_tok", "trk",
	// click identifiers
	"gclid", "gclsrc", "dclid", "fbclid", "msclkid", "yclid", "twclid",
	"ttclid", "li_fat_id", "igshid", "rb_clickid", "clickid", "click_id",
	// analytics
	"_ga", "_gl", "s_cid",
	// email marketing
	"mc_cid", "mc_eid", "_hsenc", "_hsmi", "vero_id", "oly_",
	// affiliate
	"affiliate", "aff_id", "ref_src",
}
