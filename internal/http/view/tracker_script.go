package view

import (
	"bytes"
	"text/template"
)

// TrackerScriptData provides the dynamic fields required by the snippet
// template. Endpoint is the absolute URL of the collection API; CacheHeader
// is the header name the client round-trips between calls.
type TrackerScriptData struct {
	Endpoint    string
	CacheHeader string
}

var trackerScriptTmpl = template.Must(template.New("tracker_script").Parse(`(function () {
	"use strict";

	var script = document.currentScript;
	if (!script) { return; }

	var website = script.getAttribute("data-website-id");
	if (!website) { return; }

	var endpoint = script.getAttribute("data-host-url") || {{printf "%q" .Endpoint}};
	var cacheHeader = {{printf "%q" .CacheHeader}};
	var autoTrack = script.getAttribute("data-auto-track") !== "false";
	var cache = null;

	function screen() {
		try {
			return window.screen.width + "x" + window.screen.height;
		} catch (e) {
			return "";
		}
	}

	function payload(extra) {
		var base = {
			website: website,
			hostname: location.hostname,
			url: location.href,
			referrer: document.referrer || "",
			title: document.title || "",
			screen: screen(),
			language: navigator.language || ""
		};
		for (var k in extra) { base[k] = extra[k]; }
		return base;
	}

	function send(type, data) {
		var xhr = new XMLHttpRequest();
		xhr.open("POST", endpoint, true);
		xhr.setRequestHeader("Content-Type", "application/json");
		if (cache) { xhr.setRequestHeader(cacheHeader, cache); }
		xhr.onload = function () {
			if (xhr.status !== 200) { return; }
			try {
				var body = JSON.parse(xhr.responseText);
				if (body.cache) { cache = body.cache; }
			} catch (e) { /* decoy or malformed body */ }
		};
		xhr.send(JSON.stringify({ type: type, payload: data }));
	}

	function trackView() {
		send("event", payload({}));
	}

	function trackEvent(name, data, tag) {
		send("event", payload({ name: name || "", data: data || undefined, tag: tag || "" }));
	}

	function identify(id, data) {
		send("identify", payload({ id: id || "", data: data || undefined }));
	}

	// SPA navigations rewrite history instead of reloading the page.
	function hookHistory(fn) {
		var orig = history[fn];
		history[fn] = function () {
			var ret = orig.apply(this, arguments);
			window.dispatchEvent(new Event("pageflow:navigate"));
			return ret;
		};
	}

	if (autoTrack) {
		hookHistory("pushState");
		hookHistory("replaceState");
		window.addEventListener("pageflow:navigate", trackView);
		window.addEventListener("popstate", trackView);
		if (document.readyState === "complete") {
			trackView();
		} else {
			window.addEventListener("load", trackView);
		}
	}

	window.pageflow = {
		track: trackEvent,
		identify: identify
	};
})();
`))

// RenderTrackerScript renders the embeddable tracking snippet.
func RenderTrackerScript(data TrackerScriptData) (string, error) {
	var buf bytes.Buffer
	if err := trackerScriptTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
