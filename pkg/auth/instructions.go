package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowCookieExtractionGuide explains where to find the session and CSRF
// cookies for origin
func ShowCookieExtractionGuide(w io.Writer, origin, sessionCookie, csrfCookie string) {
	rule := strings.Repeat("=", 72)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "SITE COOKIE GUIDE")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "pinmark sends your session cookies with every like, follow and page fetch.")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "1. Log in at %s in your browser.\n", origin)
	fmt.Fprintln(w, "2. Open Developer Tools (F12, or Cmd+Option+I on a Mac).")
	fmt.Fprintln(w, "3. Go to Application > Cookies (Chrome) or Storage > Cookies (Firefox).")
	fmt.Fprintf(w, "4. Select %s and copy these values:\n", origin)
	fmt.Fprintf(w, "     %-12s your login session\n", sessionCookie)
	fmt.Fprintf(w, "     %-12s the token sent as X-CSRFToken\n", csrfCookie)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Copy only the value: no quotes, no name, no semicolon.")
	fmt.Fprintln(w, "Anyone holding these cookies is logged in as you. Keep them private.")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
}

// ShowQuickExtractGuide is the one-line version
func ShowQuickExtractGuide(w io.Writer, sessionCookie, csrfCookie string) {
	fmt.Fprintf(w, "F12 > Application > Cookies > copy %s and %s\n", sessionCookie, csrfCookie)
}
