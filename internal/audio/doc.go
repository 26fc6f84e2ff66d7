// Package audio plays notification sounds. It decodes WAV, OGG and MP3 files
// with beep, caches the decoded buffers, picks a sound per notification type
// and drops cached buffers when their files change.
package audio
