package engine

import (
	"fmt"
	"os"
	"path/filepath"
)

// writeDesktopEntry creates a .desktop launcher pointing at the stable
// symlink, so upgrades never invalidate it.
func (e *Engine) writeDesktopEntry(name, execPath string) (string, error) {
	if err := os.MkdirAll(e.paths.ApplicationsDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create applications directory: %w", err)
	}

	entry := fmt.Sprintf(`[Desktop Entry]
Type=Application
Name=%s
Exec=%s
Terminal=false
Categories=Utility;
X-AppImage-Integrate=true
`, name, execPath)

	path := filepath.Join(e.paths.ApplicationsDir, "upstream-"+name+".desktop")
	if err := os.WriteFile(path, []byte(entry), 0o644); err != nil {
		return "", fmt.Errorf("failed to write desktop entry: %w", err)
	}
	return path, nil
}
