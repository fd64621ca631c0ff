// Package persona 构建发送给模型的系统指令
// Package persona builds the system directive sent ahead of every chat request
package persona

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"companion/internal/defaults"
	"companion/internal/langid"
)

// DirectiveVersion 指令模板变化时递增
// DirectiveVersion is bumped whenever the directive wording changes
const DirectiveVersion = "2"

// Profile 用户资料，来自 JSON 文件
// Profile is the user profile loaded from a JSON file
type Profile struct {
	Name     string `json:"name"`
	Title    string `json:"title"`
	Origin   string `json:"origin"`
	Location string `json:"location"`
}

func (p Profile) IsEmpty() bool {
	return strings.TrimSpace(p.Name) == "" &&
		strings.TrimSpace(p.Title) == "" &&
		strings.TrimSpace(p.Origin) == "" &&
		strings.TrimSpace(p.Location) == ""
}

// LoadProfile reads a profile file. A missing path or file yields an empty
// profile and os.ErrNotExist so callers can log it and continue.
func LoadProfile(path string) (Profile, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Profile{}, os.ErrNotExist
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Profile{}, os.ErrNotExist
		}
		return Profile{}, fmt.Errorf("read profile %s: %w", path, err)
	}
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("parse profile %s: %w", path, err)
	}
	return p, nil
}

type Persona struct {
	AIName        string
	Profile       Profile
	CreatorName   string
	CreatorNature string
}

// UserName returns the name used in greetings.
func (p Persona) UserName() string {
	if name := strings.TrimSpace(p.Profile.Name); name != "" {
		return name
	}
	return defaults.DefaultUserName
}

// BuildDirective 是纯函数：相同输入产生相同输出
// BuildDirective is pure: equal inputs give byte-identical output
func BuildDirective(p Persona, det langid.Detection) string {
	aiName := strings.TrimSpace(p.AIName)
	if aiName == "" {
		aiName = "Rafiq"
	}
	code, name := det.Code, det.Name
	if code == "" {
		code, name = langid.DefaultCode, langid.DefaultName
	}
	if name == "" {
		name = langid.Name(code)
	}
	langRule := fmt.Sprintf(defaults.LanguageRule, name, code, name)

	if p.Profile.IsEmpty() {
		return fmt.Sprintf(defaults.GenericDirective, aiName) + "\n\n" + langRule
	}

	user := p.UserName()
	creator := orDefault(p.CreatorName, defaults.DefaultCreatorName)
	nature := orDefault(p.CreatorNature, defaults.DefaultCreatorNature)

	sections := []string{
		fmt.Sprintf(defaults.PersonaRole, aiName, user),
		fmt.Sprintf(defaults.CreatorSection, creator, user, creator, nature, user),
		fmt.Sprintf(defaults.ProfileSection, user,
			orDefault(p.Profile.Title, "-"), orDefault(p.Profile.Origin, "-"), orDefault(p.Profile.Location, "-")),
		langRule,
	}
	return strings.Join(sections, "\n\n")
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}
