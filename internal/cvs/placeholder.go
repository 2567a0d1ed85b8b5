package cvs

import (
	"bytes"
	_ "embed"
	"html/template"
	"strings"
)

var (
	//go:embed templates/base.html
	baseTemplateHTML string
	//go:embed templates/placeholder.html
	placeholderHTML string

	placeholderTmpl = template.Must(template.New("placeholder").Parse(placeholderHTML))
)

// BaseTemplate returns the interactive CV page template handed to the model
// for placeholder substitution.
func BaseTemplate() string {
	return baseTemplateHTML
}

// ViewPath returns the public path for a CV, preferring the custom URL name.
func ViewPath(cv CV) string {
	if cv.CustomURLName != "" {
		return "/" + cv.CustomURLName
	}
	return "/view-cv/" + cv.URLId
}

// RenderPlaceholderPage builds the static landing page that links to the
// interactive CV, suitable for attaching to a PDF export.
func RenderPlaceholderPage(cv CV, baseURL string) (string, error) {
	name := cv.StructuredData.PersonalInfo.Name
	if strings.TrimSpace(name) == "" {
		name = "CV Owner"
	}
	data := struct {
		Name    string
		FullURL string
	}{
		Name:    name,
		FullURL: strings.TrimRight(baseURL, "/") + ViewPath(cv),
	}
	var buf bytes.Buffer
	if err := placeholderTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const trackingScript = `
<script>
// Analytics tracking code
document.addEventListener('DOMContentLoaded', function() {
  // Track page view
  fetch('/api/analytics/cv/__URL_ID__/view', {
    method: 'POST',
    headers: { 'Content-Type': 'application/json' }
  }).catch(function(error) { console.error('Error tracking view:', error); });

  // Add click tracking to expandable sections
  document.querySelectorAll('.achievement-item').forEach(function(section, index) {
    var header = section.querySelector('.achievement-header');
    if (!header) return;

    var titleElement = section.querySelector('.achievement-title');
    var sectionTitle = titleElement ? titleElement.textContent.trim() : 'Section ' + index;
    var sectionId = 'section-' + index;

    header.addEventListener('click', function() {
      fetch('/api/analytics/cv/__URL_ID__/section/' + sectionId, {
        method: 'POST',
        headers: { 'Content-Type': 'application/json' },
        body: JSON.stringify({ sectionTitle: sectionTitle })
      }).catch(function(error) { console.error('Error tracking section click:', error); });
    });
  });
});
</script>`

const printButton = `
<div class="print-controls" style="position: fixed; bottom: 20px; right: 20px; z-index: 1000;">
  <button id="print-button" style="background-color: var(--primary); color: white; border: none; border-radius: 50%; width: 50px; height: 50px; cursor: pointer; box-shadow: 0 2px 5px rgba(0,0,0,0.2);">
    <i class="fas fa-print"></i>
  </button>
</div>

<script>
  document.addEventListener('DOMContentLoaded', function() {
    document.getElementById('print-button').addEventListener('click', function() {
      window.print();
    });
  });
</script>`

// AddTracking injects the analytics snippet and a print button into a
// generated CV page, just before the closing body tag.
func AddTracking(html, urlID string) string {
	snippet := strings.ReplaceAll(trackingScript, "__URL_ID__", urlID)
	if strings.Contains(html, "</body>") {
		return strings.Replace(html, "</body>", snippet+"\n"+printButton+"\n</body>", 1)
	}
	return html + "\n" + snippet + "\n" + printButton
}
