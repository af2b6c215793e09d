package parser

import (
	"context"
	"io"

	"github.com/robinvdvleuten/beancount/ast"
)

// Parser turns a token stream produced by Lexer into an *ast.AST. It is a
// single-pass, hand-written recursive-descent parser: the directive-specific
// methods live in directives.go and transaction.go, shared grammar fragments
// (dates, accounts, amounts, costs, strings, metadata) live in helpers.go,
// and this file owns the top-level dispatch loop plus the pragmas
// (option/include/plugin/pushtag/poptag/pushmeta/popmeta) that don't carry a
// date.
type Parser struct {
	tokens   []Token
	pos      int
	source   []byte
	filename string
	interner *Interner
}

func newParser(tokens []Token, source []byte, filename string, interner *Interner) *Parser {
	return &Parser{
		tokens:   tokens,
		source:   source,
		filename: filename,
		interner: interner,
	}
}

// Parse reads and parses a complete Beancount file from r.
func Parse(ctx context.Context, r io.Reader) (*ast.AST, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return ParseBytes(ctx, data)
}

// ParseString parses a Beancount file given as a string.
func ParseString(ctx context.Context, str string) (*ast.AST, error) {
	return ParseBytes(ctx, []byte(str))
}

// ParseBytes parses a Beancount file given as a byte slice.
func ParseBytes(ctx context.Context, data []byte) (*ast.AST, error) {
	return ParseBytesWithFilename(ctx, "", data)
}

// ParseBytesWithFilename parses a Beancount file, attaching filename to every
// position recorded in the resulting tree's errors and directives.
func ParseBytesWithFilename(ctx context.Context, filename string, data []byte) (*ast.AST, error) {
	lex := NewLexer(data, filename)
	tokens, err := lex.ScanAll()
	if err != nil {
		return nil, err
	}

	p := newParser(tokens, data, filename, lex.Interner())
	tree := &ast.AST{}

	for !p.isAtEnd() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if err := p.parseTopLevelItem(tree); err != nil {
			return nil, err
		}
	}

	if err := ast.ApplyPushPopDirectives(tree); err != nil {
		return nil, err
	}
	if err := ast.SortDirectives(tree); err != nil {
		return nil, err
	}

	return tree, nil
}

// parseTopLevelItem consumes exactly one item at the top level of the file:
// a blank line, a standalone comment, a pragma, or a date-led directive.
func (p *Parser) parseTopLevelItem(tree *ast.AST) error {
	tok := p.peek()

	switch tok.Type {
	case NEWLINE:
		p.advance()
		tree.BlankLines = append(tree.BlankLines, &ast.BlankLine{Pos: tokenPosition(tok, p.filename)})
		return nil

	case COMMENT:
		tree.Comments = append(tree.Comments, p.parseStandaloneComment())
		return nil

	case OPTION:
		opt, err := p.parseOption()
		if err != nil {
			return err
		}
		tree.Options = append(tree.Options, opt)
		return nil

	case INCLUDE:
		inc, err := p.parseInclude()
		if err != nil {
			return err
		}
		tree.Includes = append(tree.Includes, inc)
		return nil

	case PLUGIN:
		plugin, err := p.parsePlugin()
		if err != nil {
			return err
		}
		tree.Plugins = append(tree.Plugins, plugin)
		return nil

	case PUSHTAG:
		pt, err := p.parsePushtag()
		if err != nil {
			return err
		}
		tree.Pushtags = append(tree.Pushtags, pt)
		return nil

	case POPTAG:
		pt, err := p.parsePoptag()
		if err != nil {
			return err
		}
		tree.Poptags = append(tree.Poptags, pt)
		return nil

	case PUSHMETA:
		pm, err := p.parsePushmeta()
		if err != nil {
			return err
		}
		tree.Pushmetas = append(tree.Pushmetas, pm)
		return nil

	case POPMETA:
		pm, err := p.parsePopmeta()
		if err != nil {
			return err
		}
		tree.Popmetas = append(tree.Popmetas, pm)
		return nil

	case DATE:
		return p.parseDateLedDirective(tree)

	default:
		return p.errorAtToken(tok, "unexpected token %s", tok.Type)
	}
}

// parseDateLedDirective consumes a DATE token, skips any blank lines or
// standalone comments between the date and the directive keyword (recording
// them on tree), and dispatches to the directive-specific parser. The
// resulting directive's position is the keyword's line, not the date's line,
// matching how Beancount reports directives whose date sits on its own line.
func (p *Parser) parseDateLedDirective(tree *ast.AST) error {
	date, err := p.parseDate()
	if err != nil {
		return err
	}

	for {
		tok := p.peek()
		switch tok.Type {
		case NEWLINE:
			p.advance()
			tree.BlankLines = append(tree.BlankLines, &ast.BlankLine{Pos: tokenPosition(tok, p.filename)})
			continue
		case COMMENT:
			tree.Comments = append(tree.Comments, p.parseStandaloneComment())
			continue
		}
		break
	}

	if p.isAtEnd() {
		return p.error("expected directive after date")
	}

	pos := p.tokenPositionFromPeek()
	tok := p.peek()

	var directive ast.Directive

	switch tok.Type {
	case BALANCE:
		directive, err = p.parseBalance(pos, date)
	case OPEN:
		directive, err = p.parseOpen(pos, date)
	case CLOSE:
		directive, err = p.parseClose(pos, date)
	case COMMODITY:
		directive, err = p.parseCommodity(pos, date)
	case PAD:
		directive, err = p.parsePad(pos, date)
	case NOTE:
		directive, err = p.parseNote(pos, date)
	case DOCUMENT:
		directive, err = p.parseDocument(pos, date)
	case PRICE:
		directive, err = p.parsePrice(pos, date)
	case EVENT:
		directive, err = p.parseEvent(pos, date)
	case CUSTOM:
		directive, err = p.parseCustom(pos, date)
	case TXN, ASTERISK, EXCLAIM, STRING:
		directive, err = p.parseTransaction(pos, date)
	default:
		return p.errorAtToken(tok, "expected directive keyword, got %s", tok.Type)
	}

	if err != nil {
		return err
	}

	tree.Directives = append(tree.Directives, directive)
	return nil
}

// parseComment consumes the current COMMENT token and returns it as an
// *ast.Comment. Used for both standalone comments and inline comments
// attached to a directive or posting.
func (p *Parser) parseComment() *ast.Comment {
	tok := p.advance()
	c := &ast.Comment{Content: tok.String(p.source)}
	c.SetPosition(tokenPosition(tok, p.filename))
	return c
}

// parseStandaloneComment consumes a standalone comment and classifies it as
// a section comment when it is immediately followed by a blank line.
func (p *Parser) parseStandaloneComment() *ast.Comment {
	c := p.parseComment()
	if !p.isAtEnd() && p.peek().Type == NEWLINE {
		c.Type = ast.SectionComment
	}
	return c
}

// finishDirective attaches a trailing inline comment (if present on the
// directive's own line) and any indented metadata lines that follow.
// Called by every non-transaction directive parser after its fields are
// populated; transactions parse their own metadata and postings instead.
func (p *Parser) finishDirective(d ast.Directive) error {
	line := d.Position().Line

	if !p.isAtEnd() && p.peek().Type == COMMENT && p.peek().Line == line {
		d.SetComment(p.parseComment())
	}

	if !p.isAtEnd() && p.peek().Line > line && p.peek().Column > 1 {
		if metadata := p.parseMetadataFromLine(line); len(metadata) > 0 {
			d.AddMetadata(metadata...)
		}
	}

	return nil
}

// parseOption parses: option STRING STRING
func (p *Parser) parseOption() (*ast.Option, error) {
	pos := p.tokenPositionFromPeek()
	p.consume(OPTION, "expected 'option'")

	name, err := p.parseString()
	if err != nil {
		return nil, err
	}

	value, err := p.parseString()
	if err != nil {
		return nil, err
	}

	opt := &ast.Option{Name: name, Value: value}
	opt.SetPosition(pos)
	return opt, nil
}

// parseInclude parses: include STRING
func (p *Parser) parseInclude() (*ast.Include, error) {
	pos := p.tokenPositionFromPeek()
	p.consume(INCLUDE, "expected 'include'")

	filename, err := p.parseString()
	if err != nil {
		return nil, err
	}

	inc := &ast.Include{Filename: filename}
	inc.SetPosition(pos)
	return inc, nil
}

// parsePlugin parses: plugin STRING [STRING]
func (p *Parser) parsePlugin() (*ast.Plugin, error) {
	pos := p.tokenPositionFromPeek()
	p.consume(PLUGIN, "expected 'plugin'")

	name, err := p.parseString()
	if err != nil {
		return nil, err
	}

	plugin := &ast.Plugin{Name: name}

	if p.check(STRING) {
		config, err := p.parseString()
		if err != nil {
			return nil, err
		}
		plugin.Config = config
	}

	plugin.SetPosition(pos)
	return plugin, nil
}

// parsePushtag parses: pushtag TAG
func (p *Parser) parsePushtag() (*ast.Pushtag, error) {
	pos := p.tokenPositionFromPeek()
	p.consume(PUSHTAG, "expected 'pushtag'")

	tag, err := p.parseTag()
	if err != nil {
		return nil, err
	}

	pt := &ast.Pushtag{Tag: tag}
	pt.SetPosition(pos)
	return pt, nil
}

// parsePoptag parses: poptag TAG
func (p *Parser) parsePoptag() (*ast.Poptag, error) {
	pos := p.tokenPositionFromPeek()
	p.consume(POPTAG, "expected 'poptag'")

	tag, err := p.parseTag()
	if err != nil {
		return nil, err
	}

	pt := &ast.Poptag{Tag: tag}
	pt.SetPosition(pos)
	return pt, nil
}

// parsePushmeta parses: pushmeta KEY: VALUE
func (p *Parser) parsePushmeta() (*ast.Pushmeta, error) {
	pos := p.tokenPositionFromPeek()
	p.consume(PUSHMETA, "expected 'pushmeta'")

	key, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	p.consume(COLON, "expected ':' after metadata key")

	value := p.parseMetadataValue()

	pm := &ast.Pushmeta{Key: key, Value: value.String()}
	pm.SetPosition(pos)
	return pm, nil
}

// parsePopmeta parses: popmeta KEY:
func (p *Parser) parsePopmeta() (*ast.Popmeta, error) {
	pos := p.tokenPositionFromPeek()
	p.consume(POPMETA, "expected 'popmeta'")

	key, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	p.consume(COLON, "expected ':' after metadata key")

	pm := &ast.Popmeta{Key: key}
	pm.SetPosition(pos)
	return pm, nil
}
