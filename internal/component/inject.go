package component

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// InjectCSS returns a script statement that appends css to the document head
// once. id identifies the stylesheet for deduplication across bundles.
func InjectCSS(id, css string) string {
	return fmt.Sprintf(`(function (id, css) {
  if (typeof document === "undefined" || document.querySelector('style[data-asset="' + id + '"]')) return;
  var el = document.createElement("style");
  el.setAttribute("data-asset", id);
  el.textContent = css;
  document.head.appendChild(el);
})(%s, %s);
`, jsString(id), jsString(css))
}

// jsString quotes s as a JavaScript string literal without HTML escaping.
func jsString(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}
