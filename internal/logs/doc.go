// Package logs reads back the JSON run log written next to the console output.
//
// Tail returns the last matching records with bounded memory and the file
// offset reached, and Follow polls from that offset for records appended by
// later runs. Records can be narrowed to one run ID or a minimum level, which
// is how `animesync logs --run` replays a single run recorded in history.
package logs
