// Package publish turns assembled entries into the stored catalog document.
package publish
