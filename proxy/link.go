/*
Copyright 2023 - 2025 Dima Krasner
Copyright 2022 Omar Polo

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package proxy

import "strings"

// ResolveLink rewrites a link or redirect target seen in a Gemini
// response. proxyName/proxyPort identify the origin the response came
// from; scriptName is the CGI mount point being proxied. The second
// return value reports whether the link was recognized as pointing at
// the current virtual host: redirect handling treats anything else as
// leaving the proxied host.
func ResolveLink(link, proxyName, proxyPort, scriptName string) (string, bool) {
	if rest, ok := stripAuthorityPrefix(link); ok {
		host, port, path, hasAuth := splitAuthority(rest)
		if !hasAuth {
			return link, false
		}
		if host == proxyName && (port == "" || port == proxyPort) {
			return scriptName + path, true
		}
		return link, false
	}

	if isAbsoluteURL(link) {
		return link, false
	}

	if link == "" || strings.HasPrefix(link, "/") {
		return scriptName + link, false
	}

	return link, false
}

// stripAuthorityPrefix strips a leading "//" or "gemini://", the two
// forms that carry an authority component.
func stripAuthorityPrefix(link string) (string, bool) {
	if rest, ok := strings.CutPrefix(link, "gemini://"); ok {
		return rest, true
	}
	if rest, ok := strings.CutPrefix(link, "//"); ok {
		return rest, true
	}
	return link, false
}

// splitAuthority splits "<host>[:<port>][/<path>]" into its parts.
func splitAuthority(rest string) (host, port, path string, ok bool) {
	slash := strings.IndexByte(rest, '/')
	authority := rest
	if slash >= 0 {
		authority = rest[:slash]
		path = rest[slash:]
	} else {
		path = "/"
	}
	if authority == "" {
		return "", "", "", false
	}
	if i := strings.IndexByte(authority, ':'); i >= 0 {
		return authority[:i], authority[i+1:], path, true
	}
	return authority, "", path, true
}

// isAbsoluteURL reports whether link starts with an alphabetic scheme
// followed by "://", e.g. "https://other/".
func isAbsoluteURL(link string) bool {
	i := strings.Index(link, "://")
	if i <= 0 {
		return false
	}
	for _, c := range link[:i] {
		if !isAlpha(c) {
			return false
		}
	}
	return true
}

func isAlpha(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
