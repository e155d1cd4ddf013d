package shell

import (
	"bytes"
	"fmt"
	"path/filepath"
	"text/template"
)

// scriptData is the single input to every activation template. Scripts
// are a pure function of these fields, so regenerating with the same
// prefix, prompt, and dialect is byte-stable.
type scriptData struct {
	EnvDir string // absolute prefix path
	BinDir string // EnvDir/bin
	ModDir string // EnvDir/lib/node_modules
	Prompt string
}

func newScriptData(prefix, prompt string) scriptData {
	return scriptData{
		EnvDir: prefix,
		BinDir: filepath.Join(prefix, "bin"),
		ModDir: filepath.Join(prefix, "lib", "node_modules"),
		Prompt: prompt,
	}
}

const bashActivate = `# This file must be used with "source bin/activate" from bash, zsh,
# or dash. You cannot run it directly.

deactivate_node () {
    if [ -n "$_OLD_NODE_VIRTUAL_PATH" ] ; then
        PATH="$_OLD_NODE_VIRTUAL_PATH"
        export PATH
        unset _OLD_NODE_VIRTUAL_PATH

        NODE_PATH="$_OLD_NODE_PATH"
        export NODE_PATH
        unset _OLD_NODE_PATH

        NPM_CONFIG_PREFIX="$_OLD_NPM_CONFIG_PREFIX"
        export NPM_CONFIG_PREFIX
        unset _OLD_NPM_CONFIG_PREFIX
    fi

    # bash and zsh cache resolved commands; flush so PATH changes are
    # respected immediately.
    if [ -n "$BASH" -o -n "$ZSH_VERSION" ] ; then
        hash -r
    fi

    if [ -n "$_OLD_NODE_VIRTUAL_PS1" ] ; then
        PS1="$_OLD_NODE_VIRTUAL_PS1"
        export PS1
        unset _OLD_NODE_VIRTUAL_PS1
    fi

    unset NODE_VIRTUAL_ENV
    if [ ! "$1" = "nondestructive" ] ; then
        unset -f deactivate_node
    fi
}

# unset irrelevant variables
deactivate_node nondestructive

NODE_VIRTUAL_ENV="{{.EnvDir}}"
export NODE_VIRTUAL_ENV

_OLD_NODE_VIRTUAL_PATH="$PATH"
PATH="{{.BinDir}}:$PATH"
export PATH

_OLD_NODE_PATH="$NODE_PATH"
NODE_PATH="{{.ModDir}}"
export NODE_PATH

_OLD_NPM_CONFIG_PREFIX="$NPM_CONFIG_PREFIX"
NPM_CONFIG_PREFIX="$NODE_VIRTUAL_ENV"
export NPM_CONFIG_PREFIX

if [ -z "$NODE_VIRTUAL_ENV_DISABLE_PROMPT" ] ; then
    _OLD_NODE_VIRTUAL_PS1="$PS1"
    PS1="{{.Prompt}}$PS1"
    export PS1
fi

if [ -n "$BASH" -o -n "$ZSH_VERSION" ] ; then
    hash -r
fi
`

const fishActivate = `# This file must be used with "source bin/activate.fish" from fish.

function deactivate_node -d "Exit the node virtual environment"
    if set -q _OLD_NODE_VIRTUAL_PATH
        set -gx PATH $_OLD_NODE_VIRTUAL_PATH
        set -e _OLD_NODE_VIRTUAL_PATH
    end
    if set -q _OLD_NODE_PATH
        set -gx NODE_PATH $_OLD_NODE_PATH
        set -e _OLD_NODE_PATH
    else
        set -e NODE_PATH
    end
    if set -q _OLD_NPM_CONFIG_PREFIX
        set -gx NPM_CONFIG_PREFIX $_OLD_NPM_CONFIG_PREFIX
        set -e _OLD_NPM_CONFIG_PREFIX
    else
        set -e NPM_CONFIG_PREFIX
    end

    set -e NODE_VIRTUAL_ENV
    if test "$argv[1]" != "nondestructive"
        functions -e deactivate_node
    end
end

# unset irrelevant variables
deactivate_node nondestructive

set -gx NODE_VIRTUAL_ENV "{{.EnvDir}}"

set -gx _OLD_NODE_VIRTUAL_PATH $PATH
set -gx PATH "{{.BinDir}}" $PATH

set -gx _OLD_NODE_PATH "$NODE_PATH"
set -gx NODE_PATH "{{.ModDir}}"

set -gx _OLD_NPM_CONFIG_PREFIX "$NPM_CONFIG_PREFIX"
set -gx NPM_CONFIG_PREFIX "$NODE_VIRTUAL_ENV"

if not set -q NODE_VIRTUAL_ENV_DISABLE_PROMPT
    functions -c fish_prompt _nodevenv_old_fish_prompt
    function fish_prompt
        printf "%s" "{{.Prompt}}"
        _nodevenv_old_fish_prompt
    end
end
`

const cshActivate = `# This file must be used with "source bin/activate.csh" from csh/tcsh.
# Every save/restore of an optional variable is guarded with $?; csh
# aborts a sourced script outright on substitution of an unset variable.

alias deactivate_node 'test $?_OLD_NODE_VIRTUAL_PATH != 0 && setenv PATH "$_OLD_NODE_VIRTUAL_PATH" && unsetenv _OLD_NODE_VIRTUAL_PATH; rehash; test $?_OLD_NODE_PATH != 0 && setenv NODE_PATH "$_OLD_NODE_PATH" && unsetenv _OLD_NODE_PATH; test $?_OLD_NPM_CONFIG_PREFIX != 0 && setenv NPM_CONFIG_PREFIX "$_OLD_NPM_CONFIG_PREFIX" && unsetenv _OLD_NPM_CONFIG_PREFIX; unsetenv NODE_VIRTUAL_ENV; test $?_OLD_NODE_VIRTUAL_PROMPT != 0 && set prompt="$_OLD_NODE_VIRTUAL_PROMPT" && unset _OLD_NODE_VIRTUAL_PROMPT; unalias deactivate_node'

setenv NODE_VIRTUAL_ENV "{{.EnvDir}}"

setenv _OLD_NODE_VIRTUAL_PATH "$PATH"
setenv PATH "{{.BinDir}}:$PATH"

if ($?NODE_PATH) then
    setenv _OLD_NODE_PATH "$NODE_PATH"
endif
setenv NODE_PATH "{{.ModDir}}"

if ($?NPM_CONFIG_PREFIX) then
    setenv _OLD_NPM_CONFIG_PREFIX "$NPM_CONFIG_PREFIX"
endif
setenv NPM_CONFIG_PREFIX "$NODE_VIRTUAL_ENV"

if ($?prompt) then
    set _OLD_NODE_VIRTUAL_PROMPT="$prompt"
    set prompt = "{{.Prompt}}$prompt"
endif

rehash
`

const cmdActivate = `@echo off
REM This file must be run from cmd.exe.

set "NODE_VIRTUAL_ENV={{.EnvDir}}"
set "_OLD_NODE_VIRTUAL_PATH=%PATH%"
set "PATH={{.BinDir}};%PATH%"
set "_OLD_NODE_PATH=%NODE_PATH%"
set "NODE_PATH={{.ModDir}}"
set "_OLD_NPM_CONFIG_PREFIX=%NPM_CONFIG_PREFIX%"
set "NPM_CONFIG_PREFIX=%NODE_VIRTUAL_ENV%"
set "PROMPT={{.Prompt}}%PROMPT%"
`

var activateTemplates = map[Dialect]*template.Template{
	Bash: template.Must(template.New("activate").Parse(bashActivate)),
	Fish: template.Must(template.New("activate.fish").Parse(fishActivate)),
	Csh:  template.Must(template.New("activate.csh").Parse(cshActivate)),
	Cmd:  template.Must(template.New("activate.bat").Parse(cmdActivate)),
}

// Script renders the standalone activation script for a dialect. It is
// a pure function of its inputs.
func Script(prefix, prompt string, d Dialect) ([]byte, error) {
	tmpl, ok := activateTemplates[d]
	if !ok {
		return nil, fmt.Errorf("unknown shell dialect %q", d)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, newScriptData(prefix, prompt)); err != nil {
		return nil, fmt.Errorf("rendering %s script: %w", d, err)
	}
	return buf.Bytes(), nil
}
