// Command clave estimates the musical key, tempo, energy and brightness of
// audio files.
//
//	clave analyze song.wav other.mp3
//	clave analyze --json --refresh *.flac
//	clave cache stats
//	clave config init
package main
