package browser

// labelScriptTemplate is the in-page annotation script. It walks the DOM in
// document order, draws one overlay rectangle plus a numeric label over every
// interactive element and returns the overlay nodes, the element nodes and
// serializable per-element metadata. COLOR_FUNCTION is substituted before
// execution with the color-assignment function for the pass.
//
// The script is transactional: if anything throws mid-walk, every overlay it
// already appended is removed before the error propagates, so a failed pass
// never leaves a partial marker set on the page.
const labelScriptTemplate = `
() => {
	function getFixedColor() {
		return '#5210DA';
	}

	function getRandomColor() {
		const letters = '0123456789ABCDEF';
		let color = '#';
		for (let i = 0; i < 6; i++) {
			color += letters[Math.floor(Math.random() * 16)];
		}
		return color;
	}

	const pickColor = COLOR_FUNCTION;

	function isVisible(el) {
		const rect = el.getBoundingClientRect();
		if (rect.width < 1 || rect.height < 1) return false;
		const style = window.getComputedStyle(el);
		return style.display !== 'none' && style.visibility !== 'hidden' && style.opacity !== '0';
	}

	const interactiveSelector = [
		'a', 'button', 'input', 'select', 'textarea',
		'[role="button"]', '[role="link"]', '[role="tab"]',
		'[role="menuitem"]', '[role="checkbox"]', '[role="radio"]',
		'[onclick]', '[contenteditable="true"]'
	].join(', ');

	const overlays = [];
	const elements = [];
	const meta = [];

	try {
		const seen = new Set();
		const candidates = document.querySelectorAll(interactiveSelector);

		for (const el of candidates) {
			if (seen.has(el)) continue;
			seen.add(el);
			if (!isVisible(el)) continue;

			const rect = el.getBoundingClientRect();
			const index = elements.length;
			const color = pickColor();

			const overlay = document.createElement('div');
			overlay.setAttribute('data-agent-marker', String(index));
			overlay.style.position = 'fixed';
			overlay.style.left = rect.left + 'px';
			overlay.style.top = rect.top + 'px';
			overlay.style.width = rect.width + 'px';
			overlay.style.height = rect.height + 'px';
			overlay.style.border = '2px solid ' + color;
			overlay.style.pointerEvents = 'none';
			overlay.style.boxSizing = 'border-box';
			overlay.style.zIndex = '2147483647';

			const label = document.createElement('span');
			label.textContent = String(index);
			label.style.position = 'absolute';
			label.style.top = '-16px';
			label.style.left = '0px';
			label.style.background = color;
			label.style.color = 'white';
			label.style.padding = '0 3px';
			label.style.fontSize = '12px';
			label.style.fontFamily = 'monospace';
			overlay.appendChild(label);

			document.body.appendChild(overlay);

			overlays.push(overlay);
			elements.push(el);
			meta.push({
				tagName: el.tagName.toLowerCase(),
				type: el.getAttribute('type') || '',
				ariaLabel: el.getAttribute('aria-label') || '',
				text: (el.innerText || el.textContent || '').trim(),
				rect: {
					x: rect.left,
					y: rect.top,
					width: rect.width,
					height: rect.height
				}
			});
		}
	} catch (err) {
		for (const overlay of overlays) {
			try { overlay.remove(); } catch (e) {}
		}
		throw err;
	}

	return { count: elements.length, rects: overlays, elements: elements, meta: meta };
}
`

// clearOverlaysScript removes every tagged overlay left on the page. Used
// when a pass fails after the annotation script has already drawn, so a retry
// never draws a second marker set over a stale one.
const clearOverlaysScript = `
() => {
	const overlays = document.querySelectorAll('[data-agent-marker]');
	let removed = 0;
	for (const overlay of overlays) {
		try { overlay.remove(); removed++; } catch (err) {}
	}
	return removed;
}
`

// removeMarkerScript detaches one overlay node. Removal is best effort: an
// already-detached node reports false instead of aborting the batch.
const removeMarkerScript = `
(node) => {
	if (!node || !node.parentNode) return false;
	try {
		node.parentNode.removeChild(node);
		return true;
	} catch (err) {
		return false;
	}
}
`
