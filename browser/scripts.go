package browser

import (
	"encoding/json"
	"fmt"
)

// isRenderedJS is shared by the scripts below: a node counts as rendered when
// it is not display:none and has a layout box.
const isRenderedJS = `function(el) {
	if (!el) { return false; }
	const style = window.getComputedStyle(el);
	if (style.display === 'none' || style.visibility === 'hidden') { return false; }
	return el.offsetParent !== null || style.position === 'fixed';
}`

func jsValue(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

func removeOverlaysScript(popupSelectors, modalSelectors []string) string {
	return fmt.Sprintf(`(() => {
	const rendered = %s;
	const seen = new Set();
	let removed = 0;
	for (const sel of %s) {
		document.querySelectorAll(sel).forEach(el => {
			if (seen.has(el)) { return; }
			seen.add(el);
			if (rendered(el)) { el.remove(); removed++; }
		});
	}
	for (const sel of %s) {
		document.querySelectorAll(sel).forEach(el => el.remove());
	}
	return removed;
})()`, isRenderedJS, jsValue(popupSelectors), jsValue(modalSelectors))
}

func scriptClickScript(selector string) string {
	return fmt.Sprintf(`(() => {
	const el = document.querySelector(%s);
	if (!el) { return false; }
	el.scrollIntoView({block: 'center'});
	el.click();
	return true;
})()`, jsValue(selector))
}

func clickFirstVisibleScript(selectors []string) string {
	return fmt.Sprintf(`(() => {
	const rendered = %s;
	for (const sel of %s) {
		for (const el of document.querySelectorAll(sel)) {
			if (rendered(el)) { el.click(); return true; }
		}
	}
	return false;
})()`, isRenderedJS, jsValue(selectors))
}

func isVisibleScript(selector string) string {
	return fmt.Sprintf(`(() => (%s)(document.querySelector(%s)))()`, isRenderedJS, jsValue(selector))
}

func textScript(selector string) string {
	return fmt.Sprintf(`(() => {
	const el = document.querySelector(%s);
	return el ? el.textContent : '';
})()`, jsValue(selector))
}

func hoverScript(selector string) string {
	return fmt.Sprintf(`(() => {
	const el = document.querySelector(%s);
	if (!el) { return false; }
	for (const type of ['mouseover', 'mouseenter', 'mousemove']) {
		el.dispatchEvent(new MouseEvent(type, {bubbles: true, cancelable: true, view: window}));
	}
	return true;
})()`, jsValue(selector))
}

func selectOptionScript(selector, label string) string {
	return fmt.Sprintf(`(() => {
	const sel = document.querySelector(%s);
	if (!sel || !sel.options) { return false; }
	for (const opt of sel.options) {
		if (opt.text.trim() === %s) {
			sel.value = opt.value;
			sel.dispatchEvent(new Event('change', {bubbles: true}));
			return true;
		}
	}
	return false;
})()`, jsValue(selector), jsValue(label))
}
