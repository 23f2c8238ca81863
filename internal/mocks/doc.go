package mocks

//go:generate mockgen -destination=mock_engines.go -package=mocks speaker-transcriber/internal/transcribe Transcriber,Diarizer
//go:generate mockgen -destination=mock_completer.go -package=mocks speaker-transcriber/internal/summarize Completer
