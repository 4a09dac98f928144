package logger

import "github.com/ideamans/go-l10n"

func init() {
	l10n.Register("ja", l10n.LexiconMap{
		// Decoder (info)
		"Decoding %s":                         "%s をデコード中",
		"Decoded %s: %dx%d %s":                "%s をデコードしました: %dx%d %s",
		"Identified %s as %s":                 "%s を %s と判定しました",
		"Processing %d files with %d workers": "%d ファイルを %d ワーカーで処理中",
		"Wrote %s":                            "%s を書き込みました",
		"Wrote %d bytes of %s to %s":          "%[2]s を %[1]d バイト %[3]s に書き込みました",
		"Scaled preview to %dx%d":             "プレビューを %dx%d に縮小しました",

		// Warnings
		"No %s metadata in %s":             "%[2]s に %[1]s メタデータがありません",
		"Skipping %s: %s":                  "%s をスキップします: %s",
		"Unknown log level %q, using info": "不明なログレベル %q のため info を使用します",

		// Errors
		"Failed to open %s: %s":      "%s を開けませんでした: %s",
		"Failed to decode %s: %s":    "%s のデコードに失敗しました: %s",
		"Failed to identify %s: %s":  "%s の判定に失敗しました: %s",
		"Failed to load config: %s":  "設定の読み込みに失敗しました: %s",
		"Failed to write output: %s": "出力の書き込みに失敗しました: %s",
		"Unsupported format: %s":     "未対応のフォーマットです: %s",
	})
}
